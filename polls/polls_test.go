package polls

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestFilterCacheKeyCanonical(t *testing.T) {
	owner := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	filter := Filter{
		Search:        "team lunch",
		Owner:         owner,
		Sort:          SortPopular,
		Limit:         10,
		IncludeClosed: true,
	}

	want := "polls:closed=true&limit=10&owner=6ba7b810-9dad-11d1-80b4-00c04fd430c8&search=team+lunch&sort=popular"
	if got := filter.CacheKey(); got != want {
		t.Fatalf("CacheKey() = %q, want %q", got, want)
	}
}

func TestFilterCacheKeyDefaultsNormalized(t *testing.T) {
	zero := Filter{}
	explicit := Filter{Sort: SortNewest, Limit: 20}

	if zero.CacheKey() != explicit.CacheKey() {
		t.Fatalf("zero filter key %q != default-equivalent key %q", zero.CacheKey(), explicit.CacheKey())
	}
	if got := zero.CacheKey(); got != "polls:limit=20&sort=newest" {
		t.Fatalf("CacheKey() = %q", got)
	}
}

func TestFilterCacheKeyDistinguishesFilters(t *testing.T) {
	base := Filter{Search: "a"}
	keys := map[string]string{
		"base":   base.CacheKey(),
		"search": Filter{Search: "b"}.CacheKey(),
		"owner":  Filter{Search: "a", Owner: uuid.New()}.CacheKey(),
		"offset": Filter{Search: "a", Offset: 20}.CacheKey(),
		"closed": Filter{Search: "a", IncludeClosed: true}.CacheKey(),
		"sort":   Filter{Search: "a", Sort: SortOldest}.CacheKey(),
	}

	seen := map[string]string{}
	for name, key := range keys {
		if !strings.HasPrefix(key, "polls:") {
			t.Fatalf("%s key %q lacks polls: prefix", name, key)
		}
		if other, dup := seen[key]; dup {
			t.Fatalf("filters %s and %s collide on key %q", name, other, key)
		}
		seen[key] = name
	}
}

func TestFilterCacheKeyEscapesValues(t *testing.T) {
	key := Filter{Search: "cats&dogs=fun"}.CacheKey()

	if strings.Contains(key, "cats&dogs") {
		t.Fatalf("search value leaked unescaped separators: %q", key)
	}
	if !strings.Contains(key, "search=cats%26dogs%3Dfun") {
		t.Fatalf("CacheKey() = %q, want escaped search value", key)
	}
}

func TestFilterWithDefaultsBounds(t *testing.T) {
	f := Filter{Sort: "bogus", Limit: 1000, Offset: -5}.withDefaults()

	if f.Sort != SortNewest {
		t.Fatalf("Sort = %q, want %q", f.Sort, SortNewest)
	}
	if f.Limit != 100 {
		t.Fatalf("Limit = %d, want 100", f.Limit)
	}
	if f.Offset != 0 {
		t.Fatalf("Offset = %d, want 0", f.Offset)
	}
}

func TestPollAcceptingVotes(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	closes := now.Add(time.Hour)

	open := Poll{ClosesAt: &closes}
	if !open.AcceptingVotes(now) {
		t.Fatal("poll before its close time should accept votes")
	}
	if open.AcceptingVotes(now.Add(2 * time.Hour)) {
		t.Fatal("poll past its close time should not accept votes")
	}

	closed := Poll{Closed: true}
	if closed.AcceptingVotes(now) {
		t.Fatal("closed poll should not accept votes")
	}

	forever := Poll{}
	if !forever.AcceptingVotes(now.Add(1000 * time.Hour)) {
		t.Fatal("poll without a close time should accept votes indefinitely")
	}
}

func TestPollTotalVotesAndHasOption(t *testing.T) {
	optA := Option{ID: uuid.New(), Label: "a", Votes: 3}
	optB := Option{ID: uuid.New(), Label: "b", Votes: 2}
	poll := Poll{Options: []Option{optA, optB}}

	if got := poll.TotalVotes(); got != 5 {
		t.Fatalf("TotalVotes() = %d, want 5", got)
	}
	if !poll.HasOption(optA.ID) {
		t.Fatal("HasOption() = false for a present option")
	}
	if poll.HasOption(uuid.New()) {
		t.Fatal("HasOption() = true for an unknown option")
	}
}
