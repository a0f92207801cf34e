package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/user/listing-aggregator/internal/entity"
	"github.com/user/listing-aggregator/internal/repository"
)

var errStub = errors.New("stub failure")

type stubRegionRepo struct {
	mu      sync.Mutex
	regions map[string]entity.Region
	failIDs map[string]bool
	getErr  error
}

func newStubRegionRepo(regions ...entity.Region) *stubRegionRepo {
	r := &stubRegionRepo{regions: map[string]entity.Region{}, failIDs: map[string]bool{}}
	for _, region := range regions {
		r.regions[region.ID] = region
	}
	return r
}

func (r *stubRegionRepo) Insert(_ context.Context, region entity.Region) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failIDs[region.ID] {
		return errStub
	}
	if _, ok := r.regions[region.ID]; !ok {
		r.regions[region.ID] = region
	}
	return nil
}

func (r *stubRegionRepo) GetAll(context.Context) ([]entity.Region, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	out := make([]entity.Region, 0, len(r.regions))
	for _, region := range r.regions {
		out = append(out, region)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *stubRegionRepo) GetByID(_ context.Context, id string) (*entity.Region, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	region, ok := r.regions[id]
	if !ok {
		return nil, repository.ErrRegionNotFound
	}
	return &region, nil
}

func (r *stubRegionRepo) GetByName(_ context.Context, name string) (*entity.Region, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, region := range r.regions {
		if region.Name == name {
			return &region, nil
		}
	}
	return nil, repository.ErrRegionNotFound
}

func (r *stubRegionRepo) Count(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.regions), nil
}

func (r *stubRegionRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.regions[id]
	delete(r.regions, id)
	return ok, nil
}

func (r *stubRegionRepo) DeleteAll(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.regions))
	r.regions = map[string]entity.Region{}
	return n, nil
}

// memStore is an in-memory listing store keyed by partition name.
type memStore struct {
	mu         sync.Mutex
	live       map[string][]entity.Listing
	backup     map[string][]entity.Listing
	writeErr   error
	readErr    error
	backupErr  error
	restoreErr error
	restores   int
}

func newMemStore() *memStore {
	return &memStore{live: map[string][]entity.Listing{}, backup: map[string][]entity.Listing{}}
}

func (s *memStore) WritePartition(_ context.Context, name string, listings []entity.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.live[name] = append([]entity.Listing(nil), listings...)
	return nil
}

func (s *memStore) ReadAll(context.Context) ([]entity.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	names := make([]string, 0, len(s.live))
	for name := range s.live {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []entity.Listing
	for _, name := range names {
		out = append(out, s.live[name]...)
	}
	return out, nil
}

func (s *memStore) BackupAll(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.live))
	for name, listings := range s.live {
		s.backup[name] = append([]entity.Listing(nil), listings...)
		keys = append(keys, name+":items:backup")
		// Fail after the first copy so callers see a partial backup.
		if s.backupErr != nil {
			return keys, s.backupErr
		}
	}
	return keys, nil
}

func (s *memStore) RestoreFromBackup(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restoreErr != nil {
		return 0, s.restoreErr
	}
	s.restores++
	for name, listings := range s.backup {
		s.live[name] = append([]entity.Listing(nil), listings...)
	}
	return len(s.backup), nil
}

func (s *memStore) DeleteBackups(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.backup)
	s.backup = map[string][]entity.Listing{}
	return n, nil
}

func (s *memStore) snapshot() map[string][]entity.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]entity.Listing, len(s.live))
	for k, v := range s.live {
		out[k] = append([]entity.Listing(nil), v...)
	}
	return out
}

// stubFetcher returns canned listings per region name.
type stubFetcher struct {
	mu      sync.Mutex
	results map[string][]entity.Listing
	errs    map[string]error
	calls   []string
	block   chan struct{}
}

func (f *stubFetcher) Fetch(ctx context.Context, region entity.Region) ([]entity.Listing, error) {
	f.mu.Lock()
	f.calls = append(f.calls, region.Name)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[region.Name]; err != nil {
		return nil, err
	}
	return f.results[region.Name], nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordedRun struct {
	status   entity.CrawlRunStatus
	run      entity.CrawlRun
	message  string
	duration time.Duration
}

type stubRunRecorder struct {
	mu       sync.Mutex
	startErr error
	runs     map[string]*recordedRun
	seq      int
}

func newStubRunRecorder() *stubRunRecorder {
	return &stubRunRecorder{runs: map[string]*recordedRun{}}
}

func (r *stubRunRecorder) Start(context.Context, entity.Platform, time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return "", r.startErr
	}
	r.seq++
	id := string(rune('a' + r.seq))
	r.runs[id] = &recordedRun{status: entity.CrawlRunning}
	return id, nil
}

func (r *stubRunRecorder) Complete(_ context.Context, id string, run entity.CrawlRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.runs[id]
	if !ok || rec.status != entity.CrawlRunning {
		return errStub
	}
	rec.status = entity.CrawlCompleted
	rec.run = run
	return nil
}

func (r *stubRunRecorder) Fail(_ context.Context, id string, message string, duration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.runs[id]
	if !ok || rec.status != entity.CrawlRunning {
		return errStub
	}
	rec.status = entity.CrawlFailed
	rec.message = message
	rec.duration = duration
	return nil
}

func (r *stubRunRecorder) only() *recordedRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.runs) != 1 {
		return nil
	}
	for _, rec := range r.runs {
		return rec
	}
	return nil
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func listing(id, title string) entity.Listing {
	return entity.Listing{
		ID:         entity.ListingID(entity.PlatformDaangn, id),
		Platform:   entity.PlatformDaangn,
		OriginalID: id,
		Title:      title,
		Status:     entity.StatusAvailable,
	}
}
