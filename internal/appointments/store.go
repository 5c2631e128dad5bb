package appointments

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/esthetix/clinic-portal/internal/slots"
	"github.com/esthetix/clinic-portal/pkg/logging"
)

const apptPartition = "APPT"

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(context.Context, *dynamodb.TransactWriteItemsInput, ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

type appointmentItem struct {
	PK string `dynamodbav:"pk"`
	Appointment
}

// Store persists appointment records in the shared schedule table.
type Store struct {
	client dynamoAPI
	table  string
	logger *logging.Logger
}

// NewStore builds an appointment store on the provided DynamoDB client.
func NewStore(client dynamoAPI, table string, logger *logging.Logger) *Store {
	if client == nil {
		panic("appointments: dynamodb client cannot be nil")
	}
	if table == "" {
		panic("appointments: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{client: client, table: table, logger: logger}
}

func apptKeyAttrs(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: apptPartition},
		"sk": &types.AttributeValueMemberS{Value: id},
	}
}

// Put writes the appointment record, replacing any record with the same id.
func (s *Store) Put(ctx context.Context, appt Appointment) error {
	item, err := attributevalue.MarshalMap(appointmentItem{PK: apptPartition, Appointment: appt})
	if err != nil {
		return fmt.Errorf("appointments: marshal %s: %w", appt.ID, err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("appointments: put %s: %w", appt.ID, err)
	}
	return nil
}

// Get loads one appointment.
func (s *Store) Get(ctx context.Context, id string) (Appointment, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       apptKeyAttrs(id),
	})
	if err != nil {
		return Appointment{}, fmt.Errorf("appointments: get %s: %w", id, err)
	}
	if out.Item == nil {
		return Appointment{}, ErrAppointmentNotFound
	}
	var item appointmentItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return Appointment{}, fmt.Errorf("appointments: malformed appointment %s: %w", id, err)
	}
	return item.Appointment, nil
}

func (s *Store) query(ctx context.Context, filter *string, names map[string]string, values map[string]types.AttributeValue) ([]Appointment, error) {
	if values == nil {
		values = map[string]types.AttributeValue{}
	}
	values[":pk"] = &types.AttributeValueMemberS{Value: apptPartition}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    aws.String("pk = :pk"),
		FilterExpression:          filter,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}

	var appts []Appointment
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("appointments: query: %w", err)
		}
		for _, raw := range out.Items {
			var item appointmentItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				s.logger.Error("malformed appointment item", "error", err)
				continue
			}
			appts = append(appts, item.Appointment)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	sort.Slice(appts, func(i, j int) bool {
		if appts[i].Date != appts[j].Date {
			return appts[i].Date < appts[j].Date
		}
		return appts[i].Time < appts[j].Time
	})
	return appts, nil
}

// List returns every appointment, ordered by date then time.
func (s *Store) List(ctx context.Context) ([]Appointment, error) {
	return s.query(ctx, nil, nil, nil)
}

// ListByUser returns the user's appointments, ordered by date then time.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Appointment, error) {
	return s.query(ctx, aws.String("userId = :uid"), nil, map[string]types.AttributeValue{
		":uid": &types.AttributeValueMemberS{Value: userID},
	})
}

// ListByDate returns the date's appointments, ordered by time. "date" is a
// reserved word in DynamoDB expressions, hence the name placeholder.
func (s *Store) ListByDate(ctx context.Context, date string) ([]Appointment, error) {
	return s.query(ctx, aws.String("#d = :date"), map[string]string{"#d": "date"}, map[string]types.AttributeValue{
		":date": &types.AttributeValueMemberS{Value: date},
	})
}

// ListBySlot returns appointments booked into the given slot.
func (s *Store) ListBySlot(ctx context.Context, slotID string) ([]Appointment, error) {
	return s.query(ctx, aws.String("slotId = :slot"), nil, map[string]types.AttributeValue{
		":slot": &types.AttributeValueMemberS{Value: slotID},
	})
}

// UpdateStatus sets the appointment's workflow status.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.table),
		Key:                      apptKeyAttrs(id),
		UpdateExpression:         aws.String("SET #s = :status"),
		ConditionExpression:      aws.String("attribute_exists(pk)"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return ErrAppointmentNotFound
		}
		return fmt.Errorf("appointments: update status %s: %w", id, err)
	}
	return nil
}

// UpdateStatusReleasingSlot sets the status and reopens the slot in one
// transaction, so a rejected booking can never keep its slot occupied.
func (s *Store) UpdateStatusReleasingSlot(ctx context.Context, id string, status Status, slotID string) error {
	items := []types.TransactWriteItem{
		{
			Update: &types.Update{
				TableName:                aws.String(s.table),
				Key:                      apptKeyAttrs(id),
				UpdateExpression:         aws.String("SET #s = :status"),
				ConditionExpression:      aws.String("attribute_exists(pk)"),
				ExpressionAttributeNames: map[string]string{"#s": "status"},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":status": &types.AttributeValueMemberS{Value: string(status)},
				},
			},
		},
		slots.ReleaseTransactItem(s.table, slotID),
	}
	if _, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	}); err != nil {
		return fmt.Errorf("appointments: update status releasing slot %s: %w", id, err)
	}
	return nil
}

// Delete removes the appointment record only. The slot it occupied stays
// occupied; releasing it is a separate, deliberate action.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       apptKeyAttrs(id),
	}); err != nil {
		return fmt.Errorf("appointments: delete %s: %w", id, err)
	}
	return nil
}

// DeleteTransactItemsBySlot renders the removal of every appointment booked
// into slotID as transaction entries for the slot manager's cascades.
func (s *Store) DeleteTransactItemsBySlot(ctx context.Context, slotID string) ([]types.TransactWriteItem, error) {
	appts, err := s.ListBySlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	return s.deleteTransactItems(appts), nil
}

// DeleteTransactItemsByDate renders the removal of every appointment on the
// date as transaction entries for the slot manager's cascades, along with the
// ids of the slots those appointments occupied so the manager can clear their
// references in the same transaction.
func (s *Store) DeleteTransactItemsByDate(ctx context.Context, date string) ([]types.TransactWriteItem, []string, error) {
	appts, err := s.ListByDate(ctx, date)
	if err != nil {
		return nil, nil, err
	}
	slotIDs := make([]string, 0, len(appts))
	for _, a := range appts {
		if a.SlotID != "" {
			slotIDs = append(slotIDs, a.SlotID)
		}
	}
	return s.deleteTransactItems(appts), slotIDs, nil
}

func (s *Store) deleteTransactItems(appts []Appointment) []types.TransactWriteItem {
	items := make([]types.TransactWriteItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(s.table),
				Key:       apptKeyAttrs(a.ID),
			},
		})
	}
	return items
}
