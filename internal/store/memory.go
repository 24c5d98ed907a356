package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Every method holds a single mutex,
// which gives the same atomicity the SQLite store gets from its constraints.
type MemoryStore struct {
	mu          sync.Mutex
	campaigns   map[string]*Campaign
	variants    map[string]*Variant
	assignments map[string]*Assignment
	results     []*StatisticalResult
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns:   make(map[string]*Campaign),
		variants:    make(map[string]*Variant),
		assignments: make(map[string]*Assignment),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateCampaign(_ context.Context, c *Campaign, variants []*Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.campaigns {
		if existing.Name == c.Name {
			return ErrDuplicateName
		}
	}

	m.campaigns[c.ID] = copyCampaign(c)
	for _, v := range variants {
		cv := *v
		cv.CampaignID = c.ID
		m.variants[v.ID] = &cv
	}
	return nil
}

func (m *MemoryStore) GetCampaign(_ context.Context, id string) (*Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyCampaign(c), nil
}

func (m *MemoryStore) ListCampaigns(_ context.Context, statuses ...CampaignStatus) ([]*Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Campaign
	for _, c := range m.campaigns {
		if len(statuses) > 0 && !slices.Contains(statuses, c.Status) {
			continue
		}
		out = append(out, copyCampaign(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MemoryStore) ListRunningWithAutoComplete(_ context.Context) ([]*Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Campaign
	for _, c := range m.campaigns {
		if c.Status == StatusRunning && c.AutoCompleteOnSignificance {
			out = append(out, copyCampaign(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MemoryStore) SetStatus(_ context.Context, id string, change StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[id]
	if !ok {
		return ErrNotFound
	}
	if len(change.From) > 0 && !slices.Contains(change.From, c.Status) {
		return ErrStatusConflict
	}

	c.Status = change.To
	c.UpdatedAt = change.At
	if change.ActualStartDate != nil {
		c.ActualStartDate = timeCopy(change.ActualStartDate)
	}
	if change.ActualEndDate != nil {
		c.ActualEndDate = timeCopy(change.ActualEndDate)
	}
	if change.WinnerVariant != "" {
		c.WinnerVariant = change.WinnerVariant
	}
	if change.WinnerDeterminedAt != nil {
		c.WinnerDeterminedAt = timeCopy(change.WinnerDeterminedAt)
	}
	if change.StatisticalSignificance != nil {
		c.StatisticalSignificance = *change.StatisticalSignificance
	}
	if change.SignificanceLevel != nil {
		f := *change.SignificanceLevel
		c.SignificanceLevel = &f
	}
	return nil
}

func (m *MemoryStore) DeleteCampaign(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.campaigns[id]; !ok {
		return ErrNotFound
	}
	delete(m.campaigns, id)
	for vid, v := range m.variants {
		if v.CampaignID == id {
			delete(m.variants, vid)
		}
	}
	for aid, a := range m.assignments {
		if a.CampaignID == id {
			delete(m.assignments, aid)
		}
	}
	m.results = slices.DeleteFunc(m.results, func(r *StatisticalResult) bool {
		return r.CampaignID == id
	})
	return nil
}

func (m *MemoryStore) ListVariants(_ context.Context, campaignID string) ([]*Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Variant
	for _, v := range m.variants {
		if v.CampaignID == campaignID {
			cv := *v
			out = append(out, &cv)
		}
	}
	SortVariants(out)
	return out, nil
}

func (m *MemoryStore) GetVariant(_ context.Context, id string) (*Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.variants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cv := *v
	return &cv, nil
}

func (m *MemoryStore) IncrementCounters(_ context.Context, variantID string, delta Counters) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.variants[variantID]
	if !ok {
		return ErrNotFound
	}
	v.Counters = v.Counters.Add(delta)
	return nil
}

func (m *MemoryStore) GetAssignment(_ context.Context, campaignID, subjectID string) (*Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a := m.findAssignment(campaignID, subjectID); a != nil {
		return copyAssignment(a), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetAssignmentByID(_ context.Context, id string) (*Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assignments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAssignment(a), nil
}

func (m *MemoryStore) GetAssignmentByDelivery(_ context.Context, deliveryID string) (*Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if deliveryID == "" {
		return nil, ErrNotFound
	}
	for _, a := range m.assignments {
		if a.DeliveryID == deliveryID {
			return copyAssignment(a), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListAssignmentsForSubject(_ context.Context, subjectID string) ([]*Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Assignment
	for _, a := range m.assignments {
		if a.SubjectID == subjectID {
			out = append(out, copyAssignment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].AssignedAt.Before(out[j].AssignedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) CreateAssignmentIfAbsent(_ context.Context, a *Assignment) (*Assignment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing := m.findAssignment(a.CampaignID, a.SubjectID); existing != nil {
		return copyAssignment(existing), false, nil
	}
	m.assignments[a.ID] = copyAssignment(a)
	return copyAssignment(a), true, nil
}

func (m *MemoryStore) LinkDelivery(_ context.Context, assignmentID, deliveryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assignments[assignmentID]
	if !ok {
		return ErrNotFound
	}
	a.DeliveryID = deliveryID
	return nil
}

func (m *MemoryStore) MarkConverted(_ context.Context, assignmentID, conversionType string, value *float64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assignments[assignmentID]
	if !ok {
		return false, ErrNotFound
	}
	if a.Converted {
		return false, nil
	}
	a.Converted = true
	a.ConvertedAt = &at
	a.ConversionType = conversionType
	if value != nil {
		f := *value
		a.ConversionValue = &f
	}
	return true, nil
}

func (m *MemoryStore) AppendResult(_ context.Context, r *StatisticalResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cr := *r
	m.results = append(m.results, &cr)
	return nil
}

func (m *MemoryStore) ListResults(_ context.Context, campaignID string) ([]*StatisticalResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*StatisticalResult
	for _, r := range m.results {
		if r.CampaignID == campaignID {
			cr := *r
			out = append(out, &cr)
		}
	}
	return out, nil
}

func (m *MemoryStore) findAssignment(campaignID, subjectID string) *Assignment {
	for _, a := range m.assignments {
		if a.CampaignID == campaignID && a.SubjectID == subjectID {
			return a
		}
	}
	return nil
}

func copyCampaign(c *Campaign) *Campaign {
	cc := *c
	cc.VariantSplit = make(map[string]float64, len(c.VariantSplit))
	for k, v := range c.VariantSplit {
		cc.VariantSplit[k] = v
	}
	return &cc
}

func copyAssignment(a *Assignment) *Assignment {
	ca := *a
	return &ca
}

func timeCopy(t *time.Time) *time.Time {
	ct := *t
	return &ct
}
