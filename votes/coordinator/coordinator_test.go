package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	uuid "github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	ideaModels "github.com/affan-mulla/nextup/ideas/models"
	"github.com/affan-mulla/nextup/internal/querycache"
	voteErrors "github.com/affan-mulla/nextup/votes/errors"
	"github.com/affan-mulla/nextup/votes/models"
)

type voteCall struct {
	ctx       context.Context
	subjectID uuid.UUID
	direction models.Direction
}

// fakeVoter hands every call to respond
type fakeVoter struct {
	calls   int32
	respond func(call voteCall) (*models.VoteResult, error)
}

func (v *fakeVoter) ApplyVote(ctx context.Context, subjectID uuid.UUID, direction models.Direction) (*models.VoteResult, error) {
	atomic.AddInt32(&v.calls, 1)
	return v.respond(voteCall{ctx: ctx, subjectID: subjectID, direction: direction})
}

type answerFunc func(voteCall) (*models.VoteResult, error)

// gatedVoter blocks each call until the test answers it. Answers are routed
// by subject so concurrent calls cannot take each other's answer.
type gatedVoter struct {
	started chan voteCall

	mu      sync.Mutex
	answers map[uuid.UUID]chan answerFunc
}

func newGatedVoter() *gatedVoter {
	return &gatedVoter{
		started: make(chan voteCall, 4),
		answers: make(map[uuid.UUID]chan answerFunc),
	}
}

// answer returns the channel the pending call for subjectID reads from
func (v *gatedVoter) answer(subjectID uuid.UUID) chan answerFunc {
	v.mu.Lock()
	defer v.mu.Unlock()
	ch, ok := v.answers[subjectID]
	if !ok {
		ch = make(chan answerFunc, 1)
		v.answers[subjectID] = ch
	}
	return ch
}

func (v *gatedVoter) ApplyVote(ctx context.Context, subjectID uuid.UUID, direction models.Direction) (*models.VoteResult, error) {
	call := voteCall{ctx: ctx, subjectID: subjectID, direction: direction}
	answers := v.answer(subjectID)
	v.started <- call
	select {
	case answer := <-answers:
		return answer(call)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func succeed(count int64, d models.Direction) answerFunc {
	return func(call voteCall) (*models.VoteResult, error) {
		return &models.VoteResult{SubjectID: call.subjectID, VoteCount: count, ViewerVote: d}, nil
	}
}

func fail(err error) answerFunc {
	return func(voteCall) (*models.VoteResult, error) { return nil, err }
}

type voteReturn struct {
	outcome *Outcome
	err     error
}

func voteAsync(c *Coordinator, subjectID uuid.UUID, d models.Direction) <-chan voteReturn {
	done := make(chan voteReturn, 1)
	go func() {
		outcome, err := c.Vote(context.Background(), subjectID, d)
		done <- voteReturn{outcome, err}
	}()
	return done
}

func newTestStore(t *testing.T) *querycache.Store {
	t.Helper()
	store := querycache.New(querycache.WithRevalidationRate(rate.Inf, 1))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func feedItem(id uuid.UUID, count int64, d models.Direction) ideaModels.FeedItem {
	item := ideaModels.FeedItem{ObjectID: id, Title: "idea " + id.String()[:8], VoteCount: count}
	if d.IsValid() {
		item.ViewerVote = &ideaModels.VoteRef{Direction: d}
	}
	return item
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// pageSet seeds one subject on a feed, a detail and a profile page,
// plus a second subject sharing the feed page
type pageSet struct {
	subject    uuid.UUID
	other      uuid.UUID
	owner      uuid.UUID
	feedKey    string
	detailKey  string
	profileKey string
}

func seedPages(t *testing.T, store *querycache.Store, count int64, d models.Direction) pageSet {
	t.Helper()
	ps := pageSet{
		subject: uuid.Must(uuid.NewV4()),
		other:   uuid.Must(uuid.NewV4()),
		owner:   uuid.Must(uuid.NewV4()),
	}
	ps.feedKey = FeedKey(0)
	ps.detailKey = DetailKey(ps.subject)
	ps.profileKey = ProfileKey(ps.owner, 0)

	feed := ideaModels.FeedPage{Items: []ideaModels.FeedItem{
		feedItem(ps.subject, count, d),
		feedItem(ps.other, 7, models.DirectionNone),
	}}
	detail := ideaModels.IdeaDetail{ObjectID: ps.subject, Title: "detail", Score: count}
	if d.IsValid() {
		detail.UserVote = &ideaModels.TypedVoteRef{Type: d}
	}
	profile := ideaModels.ProfilePage{UserID: ps.owner, Items: []ideaModels.ProfileIdea{
		{ObjectID: ps.subject, Title: "mine", Votes: count, VoteType: d},
	}}

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, ps.feedKey, mustJSON(t, feed)))
	require.NoError(t, store.Set(ctx, ps.detailKey, mustJSON(t, detail)))
	require.NoError(t, store.Set(ctx, ps.profileKey, mustJSON(t, profile)))
	return ps
}

func viewOn(t *testing.T, store *querycache.Store, key string, subjectID uuid.UUID) SubjectView {
	t.Helper()
	page, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	for _, codec := range DefaultCodecs() {
		if codec.Match(key) {
			view, ok, err := codec.View(page, subjectID)
			require.NoError(t, err)
			require.True(t, ok, "subject missing from %s", key)
			return view
		}
	}
	t.Fatalf("no codec for %s", key)
	return SubjectView{}
}

func assertEverywhere(t *testing.T, store *querycache.Store, ps pageSet, count int64, d models.Direction) {
	t.Helper()
	for _, key := range []string{ps.feedKey, ps.detailKey, ps.profileKey} {
		view := viewOn(t, store, key, ps.subject)
		assert.Equal(t, count, view.VoteCount, "voteCount on %s", key)
		assert.Equal(t, d, view.ViewerVote, "viewerVote on %s", key)
	}
}

func snapshotPages(t *testing.T, store *querycache.Store, keys ...string) map[string][]byte {
	t.Helper()
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		page, err := store.Get(context.Background(), key)
		require.NoError(t, err)
		out[key] = page
	}
	return out
}

func TestVote_OptimisticThenConfirmedOnEveryPage(t *testing.T) {
	store := newTestStore(t)
	ps := seedPages(t, store, 0, models.DirectionNone)
	voter := newGatedVoter()
	c := New(store, voter)

	done := voteAsync(c, ps.subject, models.DirectionUp)
	call := <-voter.started

	assert.Equal(t, models.DirectionUp, call.direction)
	assert.True(t, c.IsPending(ps.subject))
	assert.Equal(t, PhasePending, c.Phase(ps.subject))
	assertEverywhere(t, store, ps, 1, models.DirectionUp)

	voter.answer(ps.subject) <- succeed(1, models.DirectionUp)
	res := <-done

	require.NoError(t, res.err)
	assert.Equal(t, PhaseConfirmed, res.outcome.Phase)
	assert.ElementsMatch(t, []string{ps.feedKey, ps.detailKey, ps.profileKey}, res.outcome.Pages)
	assert.False(t, c.IsPending(ps.subject))
	assert.Equal(t, PhaseConfirmed, c.Phase(ps.subject))
	assertEverywhere(t, store, ps, 1, models.DirectionUp)

	other := viewOn(t, store, ps.feedKey, ps.other)
	assert.Equal(t, int64(7), other.VoteCount)
	assert.Equal(t, models.DirectionNone, other.ViewerVote)
}

func TestVote_ToggleOff(t *testing.T) {
	store := newTestStore(t)
	ps := seedPages(t, store, 1, models.DirectionUp)
	voter := newGatedVoter()
	c := New(store, voter)

	done := voteAsync(c, ps.subject, models.DirectionUp)
	<-voter.started
	assertEverywhere(t, store, ps, 0, models.DirectionNone)

	voter.answer(ps.subject) <- succeed(0, models.DirectionNone)
	require.NoError(t, (<-done).err)
	assertEverywhere(t, store, ps, 0, models.DirectionNone)

	// The feed shape renders an absent vote as null
	page, err := store.Get(context.Background(), ps.feedKey)
	require.NoError(t, err)
	assert.Contains(t, string(page), `"viewerVote":null`)
}

func TestVote_SwitchMovesByTwo(t *testing.T) {
	store := newTestStore(t)
	ps := seedPages(t, store, -1, models.DirectionDown)
	voter := newGatedVoter()
	c := New(store, voter)

	done := voteAsync(c, ps.subject, models.DirectionUp)
	<-voter.started
	assertEverywhere(t, store, ps, 1, models.DirectionUp)

	voter.answer(ps.subject) <- succeed(1, models.DirectionUp)
	require.NoError(t, (<-done).err)
	assertEverywhere(t, store, ps, 1, models.DirectionUp)
}

func TestVote_ServerValuesWinOverOptimisticDelta(t *testing.T) {
	store := newTestStore(t)
	ps := seedPages(t, store, 0, models.DirectionNone)
	voter := newGatedVoter()
	c := New(store, voter)

	done := voteAsync(c, ps.subject, models.DirectionUp)
	<-voter.started
	assertEverywhere(t, store, ps, 1, models.DirectionUp)

	// Two other users upvoted while the request was in flight
	voter.answer(ps.subject) <- succeed(3, models.DirectionUp)
	res := <-done

	require.NoError(t, res.err)
	assert.Equal(t, int64(3), res.outcome.Result.VoteCount)
	assertEverywhere(t, store, ps, 3, models.DirectionUp)
}

func TestVote_PagesDisagreeingOnViewerVoteEachTransition(t *testing.T) {
	store := newTestStore(t)
	ps := seedPages(t, store, 1, models.DirectionUp)

	// A stale profile page still shows no vote
	stale := ideaModels.ProfilePage{UserID: ps.owner, Items: []ideaModels.ProfileIdea{{ObjectID: ps.subject, Votes: 0}}}
	require.NoError(t, store.Set(context.Background(), ps.profileKey, mustJSON(t, stale)))

	voter := newGatedVoter()
	c := New(store, voter)

	done := voteAsync(c, ps.subject, models.DirectionUp)
	<-voter.started

	feed := viewOn(t, store, ps.feedKey, ps.subject)
	assert.Equal(t, int64(0), feed.VoteCount)
	assert.Equal(t, models.DirectionNone, feed.ViewerVote)
	profile := viewOn(t, store, ps.profileKey, ps.subject)
	assert.Equal(t, int64(1), profile.VoteCount)
	assert.Equal(t, models.DirectionUp, profile.ViewerVote)

	voter.answer(ps.subject) <- succeed(0, models.DirectionNone)
	require.NoError(t, (<-done).err)
	assertEverywhere(t, store, ps, 0, models.DirectionNone)
}

func TestVote_FailureRestoresSnapshotExactly(t *testing.T) {
	store := newTestStore(t)
	ps := seedPages(t, store, 4, models.DirectionDown)
	before := snapshotPages(t, store, ps.feedKey, ps.detailKey, ps.profileKey)

	var notified error
	voter := newGatedVoter()
	c := New(store, voter, WithNotifier(NotifierFunc(func(ctx context.Context, subjectID uuid.UUID, err error) {
		assert.Equal(t, ps.subject, subjectID)
		notified = err
	})))

	done := voteAsync(c, ps.subject, models.DirectionUp)
	<-voter.started
	assertEverywhere(t, store, ps, 6, models.DirectionUp)

	voter.answer(ps.subject) <- fail(voteErrors.ErrTransient)
	res := <-done

	assert.Nil(t, res.outcome)
	assert.ErrorIs(t, res.err, voteErrors.ErrTransient)
	assert.ErrorIs(t, notified, voteErrors.ErrTransient)
	assert.Equal(t, PhaseRolledBack, c.Phase(ps.subject))
	assert.False(t, c.IsPending(ps.subject))
	assert.Equal(t, before, snapshotPages(t, store, ps.feedKey, ps.detailKey, ps.profileKey))
}

func TestVote_TimeoutRollsBack(t *testing.T) {
	store := newTestStore(t)
	ps := seedPages(t, store, 0, models.DirectionNone)
	before := snapshotPages(t, store, ps.feedKey, ps.detailKey, ps.profileKey)

	voter := newGatedVoter()
	c := New(store, voter, WithRequestTimeout(30*time.Millisecond), WithNotifier(NotifierFunc(func(context.Context, uuid.UUID, error) {})))

	_, err := c.Vote(context.Background(), ps.subject, models.DirectionUp)

	assert.ErrorIs(t, err, voteErrors.ErrTransient)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, voteErrors.Retryable(err))
	assert.Equal(t, PhaseRolledBack, c.Phase(ps.subject))
	assert.Equal(t, before, snapshotPages(t, store, ps.feedKey, ps.detailKey, ps.profileKey))
}

func TestVote_NonRetryableErrorsAreSurfacedAsIs(t *testing.T) {
	store := newTestStore(t)
	ps := seedPages(t, store, 0, models.DirectionNone)
	voter := &fakeVoter{respond: fail(voteErrors.ErrSubjectNotFound)}
	c := New(store, voter, WithNotifier(NotifierFunc(func(context.Context, uuid.UUID, error) {})))

	_, err := c.Vote(context.Background(), ps.subject, models.DirectionUp)

	assert.ErrorIs(t, err, voteErrors.ErrSubjectNotFound)
	assert.False(t, voteErrors.Retryable(err))
	assertEverywhere(t, store, ps, 0, models.DirectionNone)
}

func TestVote_SecondClickWhilePendingIsIgnored(t *testing.T) {
	store := newTestStore(t)
	ps := seedPages(t, store, 0, models.DirectionNone)
	voter := newGatedVoter()
	c := New(store, voter)

	done := voteAsync(c, ps.subject, models.DirectionUp)
	<-voter.started
	optimistic := snapshotPages(t, store, ps.feedKey, ps.detailKey, ps.profileKey)

	_, err := c.Vote(context.Background(), ps.subject, models.DirectionUp)
	assert.ErrorIs(t, err, ErrVotePending)
	assert.Equal(t, optimistic, snapshotPages(t, store, ps.feedKey, ps.detailKey, ps.profileKey))
	assert.Len(t, voter.started, 0)

	voter.answer(ps.subject) <- succeed(1, models.DirectionUp)
	require.NoError(t, (<-done).err)
	assertEverywhere(t, store, ps, 1, models.DirectionUp)
}

func TestVote_PendingIsPerSubject(t *testing.T) {
	store := newTestStore(t)
	ps := seedPages(t, store, 0, models.DirectionNone)
	voter := newGatedVoter()
	c := New(store, voter)

	first := voteAsync(c, ps.subject, models.DirectionUp)
	<-voter.started

	assert.True(t, c.IsPending(ps.subject))
	assert.False(t, c.IsPending(ps.other))

	second := voteAsync(c, ps.other, models.DirectionDown)
	call := <-voter.started
	assert.Equal(t, ps.other, call.subjectID)
	assert.True(t, c.IsPending(ps.other))

	voter.answer(ps.other) <- succeed(6, models.DirectionDown)
	require.NoError(t, (<-second).err)
	assert.True(t, c.IsPending(ps.subject))

	voter.answer(ps.subject) <- succeed(1, models.DirectionUp)
	require.NoError(t, (<-first).err)

	assertEverywhere(t, store, ps, 1, models.DirectionUp)
	other := viewOn(t, store, ps.feedKey, ps.other)
	assert.Equal(t, int64(6), other.VoteCount)
	assert.Equal(t, models.DirectionDown, other.ViewerVote)
}

func TestVote_RollbackKeepsOtherSubjectsConfirmedVote(t *testing.T) {
	store := newTestStore(t)
	ps := seedPages(t, store, 2, models.DirectionNone)
	voter := &fakeVoter{}
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	voter.respond = func(call voteCall) (*models.VoteResult, error) {
		if call.subjectID == ps.subject {
			started <- struct{}{}
			<-release
			return nil, voteErrors.ErrTransient
		}
		return &models.VoteResult{SubjectID: call.subjectID, VoteCount: 8, ViewerVote: models.DirectionUp}, nil
	}
	c := New(store, voter, WithNotifier(NotifierFunc(func(context.Context, uuid.UUID, error) {})))

	failing := voteAsync(c, ps.subject, models.DirectionUp)
	<-started

	_, err := c.Vote(context.Background(), ps.other, models.DirectionUp)
	require.NoError(t, err)

	close(release)
	assert.ErrorIs(t, (<-failing).err, voteErrors.ErrTransient)

	assertEverywhere(t, store, ps, 2, models.DirectionNone)
	other := viewOn(t, store, ps.feedKey, ps.other)
	assert.Equal(t, int64(8), other.VoteCount)
	assert.Equal(t, models.DirectionUp, other.ViewerVote)
}

func TestVote_SuspendsRefetchAndRevalidatesInactivePages(t *testing.T) {
	store := newTestStore(t)
	ps := seedPages(t, store, 0, models.DirectionNone)
	serverPages := snapshotPages(t, store, ps.feedKey, ps.detailKey, ps.profileKey)

	fetches := make(map[string]*int32)
	for _, key := range []string{ps.detailKey, ps.profileKey} {
		key := key
		fetches[key] = new(int32)
		store.Register(key, func(ctx context.Context) ([]byte, error) {
			atomic.AddInt32(fetches[key], 1)
			return serverPages[key], nil
		})
	}

	// The feed has a slow refetch in flight when the vote starts
	feedStarted := make(chan struct{}, 1)
	var feedFetches int32
	store.Register(ps.feedKey, func(ctx context.Context) ([]byte, error) {
		if atomic.AddInt32(&feedFetches, 1) == 1 {
			feedStarted <- struct{}{}
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return serverPages[ps.feedKey], nil
	})
	fetchErr := make(chan error, 1)
	go func() {
		_, err := store.Fetch(context.Background(), ps.feedKey)
		fetchErr <- err
	}()
	<-feedStarted

	release := store.Observe(ps.detailKey)
	defer release()

	voter := newGatedVoter()
	c := New(store, voter)
	done := voteAsync(c, ps.subject, models.DirectionUp)
	<-voter.started

	assert.ErrorIs(t, <-fetchErr, querycache.ErrStale)
	assert.True(t, store.IsSuspended(ps.feedKey))
	assertEverywhere(t, store, ps, 1, models.DirectionUp)

	voter.answer(ps.subject) <- succeed(1, models.DirectionUp)
	require.NoError(t, (<-done).err)
	assert.False(t, store.IsSuspended(ps.feedKey))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&feedFetches) == 2 && atomic.LoadInt32(fetches[ps.profileKey]) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(fetches[ps.detailKey]), "actively viewed page is not revalidated in the background")
}

func TestVote_SubjectNotCachedStillSends(t *testing.T) {
	store := newTestStore(t)
	subjectID := uuid.Must(uuid.NewV4())
	voter := &fakeVoter{respond: succeed(1, models.DirectionUp)}
	c := New(store, voter)

	outcome, err := c.Vote(context.Background(), subjectID, models.DirectionUp)

	require.NoError(t, err)
	assert.Empty(t, outcome.Pages)
	assert.Equal(t, int32(1), atomic.LoadInt32(&voter.calls))
}

func TestVote_InvalidDirection(t *testing.T) {
	store := newTestStore(t)
	voter := &fakeVoter{respond: succeed(0, models.DirectionNone)}
	c := New(store, voter)

	_, err := c.Vote(context.Background(), uuid.Must(uuid.NewV4()), models.DirectionNone)

	assert.ErrorIs(t, err, voteErrors.ErrInvalidInput)
	assert.Zero(t, atomic.LoadInt32(&voter.calls))
}

func TestVote_MismatchedResponseRollsBack(t *testing.T) {
	store := newTestStore(t)
	ps := seedPages(t, store, 0, models.DirectionNone)
	voter := &fakeVoter{respond: func(voteCall) (*models.VoteResult, error) {
		return &models.VoteResult{SubjectID: uuid.Must(uuid.NewV4()), VoteCount: 9}, nil
	}}
	c := New(store, voter, WithNotifier(NotifierFunc(func(context.Context, uuid.UUID, error) {})))

	_, err := c.Vote(context.Background(), ps.subject, models.DirectionUp)

	assert.ErrorIs(t, err, voteErrors.ErrUnknown)
	assertEverywhere(t, store, ps, 0, models.DirectionNone)
}

// flakyCodec is a feed codec under its own prefix whose writes start
// failing after failAfter successful ones
type flakyCodec struct {
	FeedCodec
	writes    int32
	failAfter int32
}

func (f *flakyCodec) Match(key string) bool { return strings.HasPrefix(key, "flaky:") }

func (f *flakyCodec) Write(page []byte, view SubjectView) ([]byte, error) {
	if atomic.AddInt32(&f.writes, 1) > f.failAfter {
		return nil, errors.New("page shape changed")
	}
	return f.FeedCodec.Write(page, view)
}

func TestVote_ConfirmFailureRefetchesInsteadOfRollingBack(t *testing.T) {
	store := newTestStore(t)
	subjectID := uuid.Must(uuid.NewV4())
	key := "flaky:0"

	before := ideaModels.FeedPage{Items: []ideaModels.FeedItem{feedItem(subjectID, 0, models.DirectionNone)}}
	require.NoError(t, store.Set(context.Background(), key, mustJSON(t, before)))
	server := mustJSON(t, ideaModels.FeedPage{Items: []ideaModels.FeedItem{feedItem(subjectID, 1, models.DirectionUp)}})
	var fetches int32
	store.Register(key, func(context.Context) ([]byte, error) {
		atomic.AddInt32(&fetches, 1)
		return server, nil
	})
	// An observed page is never revalidated in the background
	release := store.Observe(key)
	defer release()

	var notified int32
	codec := &flakyCodec{failAfter: 1}
	c := New(store, &fakeVoter{respond: succeed(1, models.DirectionUp)}, WithCodec(codec),
		WithNotifier(NotifierFunc(func(context.Context, uuid.UUID, error) { atomic.AddInt32(&notified, 1) })))

	outcome, err := c.Vote(context.Background(), subjectID, models.DirectionUp)

	require.NoError(t, err)
	assert.Equal(t, PhaseConfirmed, outcome.Phase)
	assert.Equal(t, int64(1), outcome.Result.VoteCount)
	assert.Equal(t, PhaseConfirmed, c.Phase(subjectID))
	assert.Zero(t, atomic.LoadInt32(&notified))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&fetches) == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		page, err := store.Get(context.Background(), key)
		return err == nil && string(page) == string(server)
	}, time.Second, 5*time.Millisecond)
}

func TestVote_SettledPhasesAreBounded(t *testing.T) {
	store := newTestStore(t)
	c := New(store, &fakeVoter{respond: succeed(1, models.DirectionUp)}, WithSettledLimit(2))

	subjects := []uuid.UUID{uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())}
	for _, id := range subjects {
		_, err := c.Vote(context.Background(), id, models.DirectionUp)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, c.settled.Len())
	assert.Empty(t, c.pending)
	assert.Equal(t, PhaseIdle, c.Phase(subjects[0]))
	assert.Equal(t, PhaseConfirmed, c.Phase(subjects[1]))
	assert.Equal(t, PhaseConfirmed, c.Phase(subjects[2]))
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *outcomeRecorder) RecordOptimisticOutcome(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func TestVote_RecordsOutcomes(t *testing.T) {
	store := newTestStore(t)
	ps := seedPages(t, store, 0, models.DirectionNone)
	recorder := &outcomeRecorder{}
	responses := []error{nil, errors.New("boom")}
	var n int32
	voter := &fakeVoter{respond: func(call voteCall) (*models.VoteResult, error) {
		if err := responses[atomic.AddInt32(&n, 1)-1]; err != nil {
			return nil, err
		}
		return &models.VoteResult{SubjectID: call.subjectID, VoteCount: 1, ViewerVote: models.DirectionUp}, nil
	}}
	c := New(store, voter, WithRecorder(recorder), WithNotifier(NotifierFunc(func(context.Context, uuid.UUID, error) {})))

	_, err := c.Vote(context.Background(), ps.subject, models.DirectionUp)
	require.NoError(t, err)
	_, err = c.Vote(context.Background(), ps.subject, models.DirectionUp)
	require.Error(t, err)

	assert.Equal(t, []string{"confirmed", "rolled_back"}, recorder.outcomes)
	assertEverywhere(t, store, ps, 1, models.DirectionUp)
}
