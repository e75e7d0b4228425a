package services

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/its-tarun-2505/Trashure/logging"
	"github.com/its-tarun-2505/Trashure/models"
	"github.com/its-tarun-2505/Trashure/store"
	apperrors "github.com/its-tarun-2505/Trashure/utils/errors"
)

func TestCreate_PendingAndOwned(t *testing.T) {
	fx := newFixture(t)
	citizen := fx.citizen(t)

	png := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("img"))
	r := fx.create(t, citizen, CreateRequestInput{Images: []string{png, "data:broken", "plain"}})

	assert.Equal(t, models.StatusPending, r.Status)
	assert.Equal(t, citizen.UserID, r.Citizen)
	assert.Nil(t, r.Collector)
	assert.Equal(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), r.ScheduledAt)
	require.Len(t, r.Images, 1, "undecodable images are skipped")
	assert.Equal(t, 1, fx.blobs.Len())
}

func TestCreate_Validation(t *testing.T) {
	fx := newFixture(t)
	citizen := fx.citizen(t)
	ctx := context.Background()

	cases := map[string]CreateRequestInput{
		"missing address":  {Category: "Recyclables", ScheduledAt: "2025-01-01T10:00"},
		"unknown category": {Category: "Glitter", Address: "x", ScheduledAt: "2025-01-01T10:00"},
		"bad schedule":     {Category: "Recyclables", Address: "x", ScheduledAt: "tomorrow-ish"},
		"half coordinates": {Category: "Recyclables", Address: "x", ScheduledAt: "2025-01-01T10:00", Latitude: f(1)},
		"negative weight":  {Category: "Recyclables", Address: "x", ScheduledAt: "2025-01-01T10:00", Weight: f(-1)},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := fx.requests.Create(ctx, citizen, in)
			assert.True(t, errors.Is(err, apperrors.ErrValidation), "%v", err)
		})
	}

	_, err := fx.requests.Create(ctx, fx.collector(t), CreateRequestInput{Category: "Recyclables", Address: "x", ScheduledAt: "2025-01-01T10:00"})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestParseSchedule(t *testing.T) {
	fx := newFixture(t)
	for _, raw := range []string{"2025-01-01T10:00:00Z", "2025-01-01T10:00:00", "2025-01-01T10:00"} {
		got, err := fx.requests.ParseSchedule(raw)
		require.NoError(t, err, raw)
		assert.True(t, got.Equal(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)), raw)
	}
}

func TestLifecycle_RejectScenario(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	citizen, collector := fx.citizen(t), fx.collector(t)

	r := fx.create(t, citizen, CreateRequestInput{Category: "Recyclables", Address: "12 Elm St", ScheduledAt: "2025-01-01T10:00"})
	require.Equal(t, models.StatusPending, r.Status)

	r, err := fx.requests.Accept(ctx, collector, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, r.Status)
	require.NotNil(t, r.Collector)
	assert.Equal(t, collector.UserID, *r.Collector)
	assert.NotNil(t, r.AcceptedAt)

	r, err = fx.requests.Advance(ctx, collector, r.ID, "on-the-way")
	require.NoError(t, err)
	assert.NotNil(t, r.OnTheWayAt)
	r, err = fx.requests.Advance(ctx, collector, r.ID, "collected")
	require.NoError(t, err)
	assert.NotNil(t, r.CollectedAt)

	r, err = fx.requests.RequestCompletion(ctx, collector, r.ID, "done")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingCompletion, r.Status)
	assert.Equal(t, "done", r.CompletionNotes)
	assert.NotNil(t, r.CompletionRequestedAt)

	r, err = fx.requests.Reject(ctx, citizen, r.ID, "incomplete")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, r.Status)
	assert.Equal(t, "incomplete", r.RejectionFeedback)
	require.NotNil(t, r.RejectedBy)
	assert.Equal(t, citizen.UserID, *r.RejectedBy)
	assert.NotNil(t, r.RejectedAt)

	citizenNotes, err := fx.notify.ListFor(ctx, citizen.UserID)
	require.NoError(t, err)
	assert.Len(t, citizenNotes, 4)
	collectorNotes, err := fx.notify.ListFor(ctx, collector.UserID)
	require.NoError(t, err)
	require.Len(t, collectorNotes, 1)
	assert.Equal(t, "Completion rejected", collectorNotes[0].Title)
}

func TestLifecycle_ApproveStampsCompletion(t *testing.T) {
	fx := newFixture(t)
	r := fx.walk(t, fx.citizen(t), fx.collector(t), models.StatusCompleted)
	require.NotNil(t, r.CompletedAt)
	require.NotNil(t, r.CompletionApprovedAt)
}

func TestApproveOnCollectedIsInvalid(t *testing.T) {
	fx := newFixture(t)
	citizen, collector := fx.citizen(t), fx.collector(t)
	r := fx.walk(t, citizen, collector, models.StatusCollected)

	_, err := fx.requests.Approve(context.Background(), citizen, r.ID)
	apiErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, 400, apiErr.Status)
	assert.Equal(t, apperrors.ErrTransition.Code, apiErr.Code)
	assert.Equal(t, "collected", apiErr.Current)
	assert.Equal(t, "completed", apiErr.Attempted)
}

func TestAcceptTwiceFails(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	citizen, first, second := fx.citizen(t), fx.collector(t), fx.collector(t)
	r := fx.create(t, citizen, CreateRequestInput{})

	_, err := fx.requests.Accept(ctx, first, r.ID)
	require.NoError(t, err)

	_, err = fx.requests.Accept(ctx, first, r.ID)
	assert.True(t, errors.Is(err, apperrors.ErrTransition))
	_, err = fx.requests.Accept(ctx, second, r.ID)
	assert.True(t, errors.Is(err, apperrors.ErrTransition), "a taken request is not pending")
	assert.False(t, errors.Is(err, apperrors.ErrForbidden))
	_, err = fx.requests.Advance(ctx, second, r.ID, "on-the-way")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden), "later moves are ownership checked")

	got, err := fx.store.Requests().FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, first.UserID, *got.Collector)
}

func TestConcurrentAccept_ExactlyOneWins(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.create(t, fx.citizen(t), CreateRequestInput{})

	const n = 16
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		collector := fx.collector(t)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.requests.Accept(ctx, collector, r.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, apperrors.ErrTransition), "%v", err)
	}
	assert.Equal(t, 1, wins)
}

func TestOtherCollectorIsDenied(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	citizen, owner, intruder := fx.citizen(t), fx.collector(t), fx.collector(t)
	r := fx.walk(t, citizen, owner, models.StatusAccepted)

	_, err := fx.requests.Advance(ctx, intruder, r.ID, "on-the-way")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	_, err = fx.requests.Advance(ctx, intruder, r.ID, "collected")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden), "denied even when the status is also wrong")
	_, err = fx.requests.RequestCompletion(ctx, intruder, r.ID, "")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestRoleAndOwnershipChecks(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	citizen, other, collector := fx.citizen(t), fx.citizen(t), fx.collector(t)
	r := fx.walk(t, citizen, collector, models.StatusPendingCompletion)

	_, err := fx.requests.Accept(ctx, citizen, r.ID)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	_, err = fx.requests.Approve(ctx, collector, r.ID)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	_, err = fx.requests.Approve(ctx, other, r.ID)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = fx.requests.Approve(ctx, citizen, primitive.NewObjectID())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestAdvance_RejectsUnknownTargets(t *testing.T) {
	fx := newFixture(t)
	citizen, collector := fx.citizen(t), fx.collector(t)
	r := fx.walk(t, citizen, collector, models.StatusAccepted)

	for _, target := range []string{"completed", "pending", "accepted", ""} {
		_, err := fx.requests.Advance(context.Background(), collector, r.ID, target)
		assert.True(t, errors.Is(err, apperrors.ErrValidation), target)
	}
}

func TestAdvance_SkippingAheadFails(t *testing.T) {
	fx := newFixture(t)
	citizen, collector := fx.citizen(t), fx.collector(t)
	r := fx.walk(t, citizen, collector, models.StatusAccepted)

	_, err := fx.requests.Advance(context.Background(), collector, r.ID, "collected")
	assert.True(t, errors.Is(err, apperrors.ErrTransition))
}

func TestReject_RequiresFeedback(t *testing.T) {
	fx := newFixture(t)
	citizen, collector := fx.citizen(t), fx.collector(t)
	r := fx.walk(t, citizen, collector, models.StatusPendingCompletion)

	_, err := fx.requests.Reject(context.Background(), citizen, r.ID, "   ")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestCancel(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	citizen, collector := fx.citizen(t), fx.collector(t)

	pending := fx.create(t, citizen, CreateRequestInput{})
	got, err := fx.requests.Cancel(ctx, citizen, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Equal(t, citizen.UserID, *got.CancelledBy)
	assert.NotNil(t, got.CancelledAt)

	_, err = fx.requests.Cancel(ctx, citizen, pending.ID)
	assert.True(t, errors.Is(err, apperrors.ErrTransition), "cancelled is terminal")

	accepted := fx.walk(t, citizen, collector, models.StatusAccepted)
	got, err = fx.requests.Advance(ctx, collector, accepted.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, collector.UserID, *got.CancelledBy)

	awaiting := fx.walk(t, citizen, collector, models.StatusPendingCompletion)
	_, err = fx.requests.Cancel(ctx, citizen, awaiting.ID)
	assert.True(t, errors.Is(err, apperrors.ErrTransition))
}

func TestUploadProof(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	citizen, collector := fx.citizen(t), fx.collector(t)
	img := Upload{Data: []byte("jpeg"), ContentType: "image/jpeg"}

	accepted := fx.walk(t, citizen, collector, models.StatusAccepted)
	_, err := fx.requests.UploadProof(ctx, collector, accepted.ID, []Upload{img})
	assert.True(t, errors.Is(err, apperrors.ErrTransition))

	collected := fx.walk(t, citizen, collector, models.StatusCollected)
	_, err = fx.requests.UploadProof(ctx, collector, collected.ID, nil)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	_, err = fx.requests.UploadProof(ctx, collector, collected.ID, []Upload{{}})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	got, err := fx.requests.UploadProof(ctx, collector, collected.ID, []Upload{img, img})
	require.NoError(t, err)
	assert.Len(t, got.ProofImages, 2)
	assert.Equal(t, models.StatusCollected, got.Status)

	_, err = fx.requests.UploadProof(ctx, fx.collector(t), collected.ID, []Upload{img})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

// racingRequests fails every proof write, as when another actor moved the
// request between the check and the write.
type racingRequests struct {
	store.Requests
	err error
}

func (r racingRequests) AppendProof(context.Context, primitive.ObjectID, store.Condition, []string, time.Time) (*models.PickupRequest, error) {
	return nil, r.err
}

func TestUploadProof_FailedWriteRemovesBlobs(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	citizen, collector := fx.citizen(t), fx.collector(t)
	collected := fx.walk(t, citizen, collector, models.StatusCollected)
	img := Upload{Data: []byte("jpeg"), ContentType: "image/jpeg"}

	for name, tc := range map[string]struct {
		err  error
		want string
	}{
		"lost race": {store.ErrConditionFailed, "INVALID_TRANSITION"},
		"db error":  {errors.New("connection reset"), "DB_ERROR"},
	} {
		t.Run(name, func(t *testing.T) {
			svc := NewRequestService(racingRequests{Requests: fx.store.Requests(), err: tc.err},
				fx.notify, fx.blobs, time.UTC, logging.Discard())
			before := fx.blobs.Len()

			_, err := svc.UploadProof(ctx, collector, collected.ID, []Upload{img, img})
			apiErr, ok := apperrors.As(err)
			require.True(t, ok, "%v", err)
			assert.Equal(t, tc.want, apiErr.Code)
			assert.Equal(t, before, fx.blobs.Len(), "proof blobs must not be orphaned")
		})
	}

	got, err := fx.store.Requests().FindByID(ctx, collected.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ProofImages)
}

func TestNotificationFailureKeepsTransition(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.requests.notify = NewNotificationService(failingNotifications{}, logging.Discard())
	citizen, collector := fx.citizen(t), fx.collector(t)
	r := fx.create(t, citizen, CreateRequestInput{})

	got, err := fx.requests.Accept(ctx, collector, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)

	stored, err := fx.store.Requests().FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, stored.Status)
}
