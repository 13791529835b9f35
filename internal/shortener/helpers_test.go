package shortener

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"url-shortener/internal/db"
)

func setupTestStore(t *testing.T) *db.Store {
	t.Helper()
	store, err := db.Open(":memory:", zerolog.Nop(), false)
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

// sequence returns the given codes in order, then falls back to random ones.
func sequence(codes ...string) (Generator, *int) {
	var mu sync.Mutex
	calls := 0
	return func(length int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls <= len(codes) {
			return codes[calls-1], nil
		}
		return GenerateCode(length)
	}, &calls
}

// repeated always returns the symbol 'a' repeated to the requested length.
func repeated(length int) (string, error) {
	return strings.Repeat("a", length), nil
}

// racingStore reports an insert conflict for the first `conflicts` creates,
// as if another request had taken the code between check and insert.
type racingStore struct {
	*db.Store
	mu        sync.Mutex
	conflicts int
	creates   int
}

func (s *racingStore) CreateLink(ctx context.Context, link *db.Link) error {
	s.mu.Lock()
	s.creates++
	lose := s.creates <= s.conflicts
	s.mu.Unlock()
	if lose {
		return db.ErrDuplicateCode
	}
	return s.Store.CreateLink(ctx, link)
}

// retiringStore retires the link right after it has been read, before the
// click is counted.
type retiringStore struct {
	*db.Store
}

func (s *retiringStore) FindActiveLinkByCode(ctx context.Context, code string) (*db.Link, error) {
	link, err := s.Store.FindActiveLinkByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.Store.RetireLink(ctx, link.OwnerID, link.ID); err != nil {
		return nil, err
	}
	return link, nil
}

type fakeQueue struct {
	jobs []string
}

func (q *fakeQueue) Enqueue(linkID, originalURL string) bool {
	q.jobs = append(q.jobs, linkID+" "+originalURL)
	return true
}
