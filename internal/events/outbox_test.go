package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/wolfman30/glowbook-platform/pkg/logging"
)

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newOutboxStoreWithDB(mock)

	mock.ExpectExec("INSERT INTO outbox").WithArgs(pgxmock.AnyArg(), "booking-1", TypeBookingCreated, pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if _, err := Enqueue(context.Background(), mock, "booking-1", TypeBookingCreated, BookingCreatedV1{BookingID: "booking-1"}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	now := time.Now().UTC()
	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "aggregate_id", "type", "payload", "created_at"}).AddRow(id, "booking-1", TypeBookingCreated, []byte(`{"booking_id":"booking-1"}`), now)
	mock.ExpectQuery("SELECT id").WithArgs(int32(10)).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("fetch pending failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id {
		t.Fatalf("unexpected entries: %#v", entries)
	}

	mock.ExpectExec("UPDATE outbox").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), id)
	if err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	if !ok {
		t.Fatal("expected mark delivered to report success")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEnqueueInsideTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO outbox").WithArgs(pgxmock.AnyArg(), "booking-2", TypeBookingConflictOverridden, pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	tx, err := mock.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := Enqueue(context.Background(), tx, "booking-2", TypeBookingConflictOverridden, BookingConflictOverriddenV1{BookingID: "booking-2"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

type memoryPending struct {
	entries   []OutboxEntry
	delivered []uuid.UUID
}

func (m *memoryPending) FetchPending(context.Context, int32) ([]OutboxEntry, error) {
	return m.entries, nil
}

func (m *memoryPending) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	m.delivered = append(m.delivered, id)
	return true, nil
}

type flakyHandler struct {
	fail map[uuid.UUID]bool
}

func (h flakyHandler) Handle(_ context.Context, entry OutboxEntry) error {
	if h.fail[entry.ID] {
		return errors.New("queue unavailable")
	}
	return nil
}

func TestDelivererLeavesFailedEntriesPending(t *testing.T) {
	good, bad := uuid.New(), uuid.New()
	store := &memoryPending{entries: []OutboxEntry{{ID: bad}, {ID: good}}}
	d := NewDeliverer(nil, flakyHandler{fail: map[uuid.UUID]bool{bad: true}}, logging.Discard())
	d.store = store

	if n := d.drain(context.Background()); n != 1 {
		t.Fatalf("expected 1 delivered, got %d", n)
	}
	if len(store.delivered) != 1 || store.delivered[0] != good {
		t.Fatalf("unexpected acknowledgements: %v", store.delivered)
	}
}

type recordingSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (r *recordingSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	r.input = in
	return &sqs.SendMessageOutput{}, r.err
}

func TestSQSPublisherHandle(t *testing.T) {
	client := &recordingSQS{}
	pub := newSQSPublisher(client, "https://sqs.local/booking-events")

	payload, _ := json.Marshal(BookingCreatedV1{BookingID: "b-1"})
	entry := OutboxEntry{ID: uuid.New(), AggregateID: "b-1", Type: TypeBookingCreated, Payload: payload}
	if err := pub.Handle(context.Background(), entry); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if aws.ToString(client.input.QueueUrl) != "https://sqs.local/booking-events" {
		t.Fatalf("unexpected queue url %q", aws.ToString(client.input.QueueUrl))
	}
	if got := aws.ToString(client.input.MessageAttributes["event_type"].StringValue); got != TypeBookingCreated {
		t.Fatalf("unexpected event type attribute %q", got)
	}

	client.err = errors.New("throttled")
	if err := pub.Handle(context.Background(), entry); err == nil {
		t.Fatalf("expected send error")
	}
}
