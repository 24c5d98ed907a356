// Package assign routes subjects into experiment variants.
//
// Routing is a pure function of (campaign id, subject id): the pair is
// hashed into a bucket in [0,1) and the bucket is walked through the
// campaign's traffic split. No clock, randomness or insertion order is
// involved, so the same subject lands in the same variant on every host
// and after every restart.
package assign

import "github.com/cespare/xxhash/v2"

// separator keeps ("ab", "c") and ("a", "bc") from hashing alike.
const separator = "\x00"

// Bucket maps a (campaign, subject) pair to a stable value in [0,1).
func Bucket(campaignID, subjectID string) float64 {
	sum := xxhash.Sum64String(campaignID + separator + subjectID)
	// The top 53 bits fill a float64 mantissa exactly, so the result
	// can never round up to 1.
	return float64(sum>>11) * 0x1p-53
}
