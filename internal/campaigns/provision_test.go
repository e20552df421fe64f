package campaigns

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/FlyrPro/Flyr-Backend/internal/source"
)

// fakeStore keeps everything in memory and mimics the upsert keying of
// the real store.
type fakeStore struct {
	addresses  map[uuid.UUID][]CanonicalAddress
	links      map[string]BuildingAddressLink
	statuses   []string
	logs       []ProvisionLog
	snapshots  map[uuid.UUID]CampaignSnapshot
	replaceErr error
	upsertErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		addresses: make(map[uuid.UUID][]CanonicalAddress),
		links:     make(map[string]BuildingAddressLink),
		snapshots: make(map[uuid.UUID]CampaignSnapshot),
	}
}

func (s *fakeStore) EnsureCampaign(ctx context.Context, campaignID, ownerID uuid.UUID) error {
	return nil
}

// committedRows mirrors the real store's behavior of reporting the
// rows already durable before the failing chunk.
func committedRows(err error) int {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe.Committed
	}
	return 0
}

func (s *fakeStore) ListAddresses(ctx context.Context, campaignID uuid.UUID) ([]CanonicalAddress, error) {
	return s.addresses[campaignID], nil
}

func (s *fakeStore) ReplaceAddresses(ctx context.Context, campaignID uuid.UUID, rows []CanonicalAddress) (int, error) {
	if s.replaceErr != nil {
		return committedRows(s.replaceErr), s.replaceErr
	}
	withIDs := make([]CanonicalAddress, len(rows))
	for i, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		withIDs[i] = row
	}
	s.addresses[campaignID] = withIDs
	return len(withIDs), nil
}

func (s *fakeStore) UpsertLinks(ctx context.Context, links []BuildingAddressLink) (int, error) {
	if s.upsertErr != nil {
		return committedRows(s.upsertErr), s.upsertErr
	}
	for _, l := range links {
		s.links[l.CampaignID.String()+"/"+l.AddressID.String()] = l
	}
	return len(links), nil
}

func (s *fakeStore) ListLinks(ctx context.Context, campaignID uuid.UUID, matchTypes []string) ([]BuildingAddressLink, error) {
	var out []BuildingAddressLink
	for _, l := range s.links {
		if l.CampaignID != campaignID {
			continue
		}
		if len(matchTypes) > 0 {
			found := false
			for _, t := range matchTypes {
				if l.MatchType == t {
					found = true
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *fakeStore) SetProvisionStatus(ctx context.Context, campaignID uuid.UUID, status string) error {
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *fakeStore) RecordProvision(ctx context.Context, entry ProvisionLog) error {
	s.logs = append(s.logs, entry)
	return nil
}

func (s *fakeStore) SaveSnapshot(ctx context.Context, snap CampaignSnapshot) error {
	s.snapshots[snap.CampaignID] = snap
	return nil
}

func (s *fakeStore) GetSnapshot(ctx context.Context, campaignID uuid.UUID) (CampaignSnapshot, error) {
	snap, ok := s.snapshots[campaignID]
	if !ok {
		return CampaignSnapshot{}, ErrSnapshotNotFound
	}
	return snap, nil
}

// fakeGoldSource serves canned polygon results keyed by region filter.
type fakeGoldSource struct {
	byRegion    map[string][]source.Candidate
	err         error
	regionsSeen []string
}

func (f *fakeGoldSource) Name() string { return "gold" }

func (f *fakeGoldSource) QueryNearest(ctx context.Context, center orb.Point, limit int) ([]source.Candidate, error) {
	return nil, nil
}

func (f *fakeGoldSource) QuerySameStreet(ctx context.Context, seed orb.Point, street, locality string, limit int) ([]source.Candidate, error) {
	return nil, nil
}

func (f *fakeGoldSource) QueryByPolygon(ctx context.Context, polygon orb.Ring, region string) ([]source.Candidate, error) {
	f.regionsSeen = append(f.regionsSeen, region)
	if f.err != nil {
		return nil, f.err
	}
	return f.byRegion[region], nil
}

func (f *fakeGoldSource) Ping(ctx context.Context, p orb.Point) error { return f.err }

// fakeBulk serves a canned extract result and feature collection.
type fakeBulk struct {
	result     source.ExtractResult
	extractErr error
	fc         string
	fetchErr   error
	extracts   int
}

func (f *fakeBulk) Extract(ctx context.Context, campaignID uuid.UUID, polygon orb.Ring, limits source.ExtractLimits) (source.ExtractResult, error) {
	f.extracts++
	if f.extractErr != nil {
		return source.ExtractResult{}, f.extractErr
	}
	return f.result, nil
}

func (f *fakeBulk) FetchFeatureCollection(ctx context.Context, url string) (*geojson.FeatureCollection, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return geojson.UnmarshalFeatureCollection([]byte(f.fc))
}

func goldCandidate(number, street string) source.Candidate {
	c := source.Candidate{
		Point:       orb.Point{-89.65, 39.78},
		HouseNumber: number,
		Street:      street,
		Formatted:   number + " " + street,
		Origin:      source.OriginGold,
	}
	return c.WithHouseKey()
}

var boundary = orb.Ring{{-89.66, 39.77}, {-89.64, 39.77}, {-89.64, 39.79}, {-89.66, 39.79}, {-89.66, 39.77}}

const bulkAddressesFC = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [-89.6501, 39.7817]},
			"properties": {"number": "12", "street": "Main Street", "city": "Springfield"}
		},
		{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [-89.6502, 39.7818]},
			"properties": {"number": "14", "street": "Main Street", "city": "Springfield"}
		},
		{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [-89.6503, 39.7819]},
			"properties": {"number": "16", "street": "Main Street", "city": "Springfield"}
		}
	]
}`

func TestProvisionGoldSufficient(t *testing.T) {
	store := newFakeStore()
	gold := &fakeGoldSource{byRegion: map[string][]source.Candidate{
		"IL": {goldCandidate("12", "Main Street"), goldCandidate("14", "Main Street")},
	}}
	bulk := &fakeBulk{}
	p := NewProvisioner(gold, bulk, store, ProvisionConfig{GoldCoverageThreshold: 2})
	campaignID := uuid.New()

	result, err := p.Provision(context.Background(), campaignID, uuid.New(), boundary, "IL")
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	if result.Source != source.OriginGold {
		t.Errorf("source = %q, want gold", result.Source)
	}
	if bulk.extracts != 0 {
		t.Error("bulk pipeline must not run when gold coverage suffices")
	}
	if result.Committed != 2 || len(store.addresses[campaignID]) != 2 {
		t.Errorf("committed = %d, stored = %d", result.Committed, len(store.addresses[campaignID]))
	}
	last := store.statuses[len(store.statuses)-1]
	if last != ProvisionReady {
		t.Errorf("final status = %q, want ready", last)
	}
}

func TestProvisionBulkMergeKeepsGoldRows(t *testing.T) {
	store := newFakeStore()
	gold := &fakeGoldSource{byRegion: map[string][]source.Candidate{
		"": {goldCandidate("12", "Main Street")},
	}}
	bulk := &fakeBulk{
		result: source.ExtractResult{
			AddressesURL: "https://snapshots.test/a.geojson.gz",
			BuildingsURL: "https://snapshots.test/b.geojson.gz",
			ReleaseTag:   "2026-08",
		},
		fc: bulkAddressesFC,
	}
	p := NewProvisioner(gold, bulk, store, ProvisionConfig{GoldCoverageThreshold: 5})
	campaignID := uuid.New()

	result, err := p.Provision(context.Background(), campaignID, uuid.New(), boundary, "")
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	if result.Source != source.OriginBulk {
		t.Errorf("source = %q, want bulk", result.Source)
	}
	// Gold "12 MAIN STREET" collides with the bulk row for the same
	// house; the gold row must win.
	if result.GoldCount != 1 || result.BulkCount != 2 {
		t.Errorf("gold = %d, bulk = %d; want 1 and 2", result.GoldCount, result.BulkCount)
	}
	rows := store.addresses[campaignID]
	if len(rows) != 3 {
		t.Fatalf("stored %d rows, want 3", len(rows))
	}
	if rows[0].Source != string(source.OriginGold) {
		t.Errorf("first row source = %q, want gold", rows[0].Source)
	}

	snap, err := store.GetSnapshot(context.Background(), campaignID)
	if err != nil {
		t.Fatalf("snapshot not saved: %v", err)
	}
	if snap.ReleaseTag != "2026-08" || snap.BuildingsKey != "https://snapshots.test/b.geojson.gz" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestProvisionRetriesWithoutRegion(t *testing.T) {
	store := newFakeStore()
	gold := &fakeGoldSource{byRegion: map[string][]source.Candidate{
		"IL": nil,
		"":   {goldCandidate("12", "Main Street"), goldCandidate("14", "Main Street")},
	}}
	p := NewProvisioner(gold, &fakeBulk{}, store, ProvisionConfig{GoldCoverageThreshold: 2})

	result, err := p.Provision(context.Background(), uuid.New(), uuid.New(), boundary, "IL")
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	if len(gold.regionsSeen) != 2 || gold.regionsSeen[0] != "IL" || gold.regionsSeen[1] != "" {
		t.Errorf("regions queried = %v, want [IL \"\"]", gold.regionsSeen)
	}
	if result.GoldCount != 2 {
		t.Errorf("gold count = %d after retry, want 2", result.GoldCount)
	}
}

func TestProvisionGoldErrorRecoveredByBulk(t *testing.T) {
	store := newFakeStore()
	gold := &fakeGoldSource{err: source.ErrUnavailable}
	bulk := &fakeBulk{
		result: source.ExtractResult{AddressesURL: "https://snapshots.test/a.geojson.gz"},
		fc:     bulkAddressesFC,
	}
	p := NewProvisioner(gold, bulk, store, ProvisionConfig{GoldCoverageThreshold: 2})

	result, err := p.Provision(context.Background(), uuid.New(), uuid.New(), boundary, "")
	if err != nil {
		t.Fatalf("gold failure should be recovered by bulk, got %v", err)
	}
	if result.Source != source.OriginBulk || result.BulkCount != 3 {
		t.Errorf("source = %q bulk = %d, want bulk source with 3 rows", result.Source, result.BulkCount)
	}
}

func TestProvisionBulkFailureMarksFailed(t *testing.T) {
	store := newFakeStore()
	gold := &fakeGoldSource{}
	bulk := &fakeBulk{extractErr: errors.New("pipeline down")}
	p := NewProvisioner(gold, bulk, store, ProvisionConfig{GoldCoverageThreshold: 2})
	campaignID := uuid.New()

	_, err := p.Provision(context.Background(), campaignID, uuid.New(), boundary, "")
	if err == nil {
		t.Fatal("expected bulk failure to surface")
	}
	last := store.statuses[len(store.statuses)-1]
	if last != ProvisionFailed {
		t.Errorf("final status = %q, want failed", last)
	}
	if len(store.logs) != 1 || store.logs[0].Error == "" {
		t.Errorf("provision log = %+v, want one entry with error", store.logs)
	}
}

func TestProvisionReplacesPriorAddresses(t *testing.T) {
	store := newFakeStore()
	gold := &fakeGoldSource{byRegion: map[string][]source.Candidate{
		"": {goldCandidate("12", "Main Street"), goldCandidate("14", "Main Street")},
	}}
	p := NewProvisioner(gold, &fakeBulk{}, store, ProvisionConfig{GoldCoverageThreshold: 2})
	campaignID := uuid.New()

	if _, err := p.Provision(context.Background(), campaignID, uuid.New(), boundary, ""); err != nil {
		t.Fatalf("first provision failed: %v", err)
	}

	gold.byRegion[""] = []source.Candidate{goldCandidate("7", "Oak Avenue"), goldCandidate("9", "Oak Avenue")}
	if _, err := p.Provision(context.Background(), campaignID, uuid.New(), boundary, ""); err != nil {
		t.Fatalf("second provision failed: %v", err)
	}

	rows := store.addresses[campaignID]
	if len(rows) != 2 {
		t.Fatalf("stored %d rows, want only the second set", len(rows))
	}
	for _, row := range rows {
		if row.Street != "Oak Avenue" {
			t.Errorf("residue from first provision: %+v", row)
		}
	}
}

func TestProvisionPersistenceFailureSurfaced(t *testing.T) {
	store := newFakeStore()
	store.replaceErr = &PersistenceError{Committed: 1, Err: errors.New("connection reset")}
	gold := &fakeGoldSource{byRegion: map[string][]source.Candidate{
		"": {goldCandidate("12", "Main Street"), goldCandidate("14", "Main Street")},
	}}
	p := NewProvisioner(gold, &fakeBulk{}, store, ProvisionConfig{GoldCoverageThreshold: 2})
	campaignID := uuid.New()

	result, err := p.Provision(context.Background(), campaignID, uuid.New(), boundary, "")
	if err == nil {
		t.Fatal("expected the batch-write failure to surface")
	}

	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want a *PersistenceError", err)
	}
	if pe.Committed != 1 {
		t.Errorf("committed = %d, want 1", pe.Committed)
	}
	if result.Committed != 1 {
		t.Errorf("result committed = %d, want the partial count", result.Committed)
	}

	last := store.statuses[len(store.statuses)-1]
	if last != ProvisionFailed {
		t.Errorf("final status = %q, want failed", last)
	}
	if len(store.logs) != 1 || store.logs[0].Error == "" {
		t.Errorf("provision log = %+v, want one entry with the error recorded", store.logs)
	}
}

func TestProvisionDeduplicatesGoldRows(t *testing.T) {
	store := newFakeStore()
	gold := &fakeGoldSource{byRegion: map[string][]source.Candidate{
		"": {
			goldCandidate("12", "Main Street"),
			goldCandidate("12", "Main Street"),
			goldCandidate("14", "Main Street"),
		},
	}}
	p := NewProvisioner(gold, &fakeBulk{}, store, ProvisionConfig{GoldCoverageThreshold: 2})

	result, err := p.Provision(context.Background(), uuid.New(), uuid.New(), boundary, "")
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	if result.GoldCount != 2 {
		t.Errorf("gold count = %d, want 2 after dedup", result.GoldCount)
	}
}
