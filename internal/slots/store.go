package slots

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/esthetix/clinic-portal/pkg/logging"
)

const (
	// SlotPartition is the partition key shared by all slot items.
	SlotPartition = "SLOT"

	metaPartition     = "META"
	closedDatesKey    = "closedDates"
	weeklyTemplateKey = "weeklySchedule"

	maxBatchWrite = 25
)

// ErrSlotNotFound indicates the requested slot id does not exist.
var ErrSlotNotFound = errors.New("slots: slot not found")

// ErrSlotUnavailable indicates a reservation lost the race or targeted a
// disabled or occupied slot.
var ErrSlotUnavailable = errors.New("slots: slot unavailable")

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(context.Context, *dynamodb.BatchWriteItemInput, ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	TransactWriteItems(context.Context, *dynamodb.TransactWriteItemsInput, ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

type slotItem struct {
	PK            string `dynamodbav:"pk"`
	SK            string `dynamodbav:"sk"`
	Day           string `dynamodbav:"day"`
	Start         string `dynamodbav:"start"`
	End           string `dynamodbav:"end"`
	IsAvailable   bool   `dynamodbav:"isAvailable"`
	AppointmentID string `dynamodbav:"appointmentId"`
}

func (i slotItem) toSlot() TimeSlot {
	return TimeSlot{
		ID:            i.SK,
		Day:           i.Day,
		Start:         i.Start,
		End:           i.End,
		IsAvailable:   i.IsAvailable,
		AppointmentID: i.AppointmentID,
	}
}

func fromSlot(s TimeSlot) slotItem {
	appt := s.AppointmentID
	if appt == "" {
		appt = NoAppointment
	}
	return slotItem{
		PK:            SlotPartition,
		SK:            s.ID,
		Day:           s.Day,
		Start:         s.Start,
		End:           s.End,
		IsAvailable:   s.IsAvailable,
		AppointmentID: appt,
	}
}

type closedDatesItem struct {
	PK    string   `dynamodbav:"pk"`
	SK    string   `dynamodbav:"sk"`
	Dates []string `dynamodbav:"dates"`
}

type weeklyTemplateItem struct {
	PK       string         `dynamodbav:"pk"`
	SK       string         `dynamodbav:"sk"`
	Template WeeklyTemplate `dynamodbav:"template"`
}

// Store is the single source of truth for the slot grid and closed dates,
// backed by one DynamoDB table.
type Store struct {
	client dynamoAPI
	table  string
	logger *logging.Logger
}

// NewStore builds a slot store on the provided DynamoDB client.
func NewStore(client dynamoAPI, table string, logger *logging.Logger) *Store {
	if client == nil {
		panic("slots: dynamodb client cannot be nil")
	}
	if table == "" {
		panic("slots: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{client: client, table: table, logger: logger}
}

func slotKeyAttrs(slotID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: SlotPartition},
		"sk": &types.AttributeValueMemberS{Value: slotID},
	}
}

// FetchGrid reads every slot item. When the table holds no slots yet, the
// default grid is generated, persisted, and returned, so callers always
// observe a populated grid after the first call. Read failures degrade to an
// empty grid: an empty result means "unknown", not "no slots exist".
func (s *Store) FetchGrid(ctx context.Context) map[string]TimeSlot {
	grid := make(map[string]TimeSlot)

	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: SlotPartition},
		},
	}
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			s.logger.Error("failed to fetch slot grid", "error", err)
			return map[string]TimeSlot{}
		}
		for _, raw := range out.Items {
			var item slotItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				s.logger.Error("malformed slot item", "error", err)
				continue
			}
			grid[item.SK] = item.toSlot()
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	if len(grid) == 0 {
		grid = GenerateGrid()
		if err := s.PutGrid(ctx, grid); err != nil {
			s.logger.Error("failed to bootstrap slot grid", "error", err)
		} else {
			s.logger.Info("bootstrapped default slot grid", "slots", len(grid))
		}
	}
	return grid
}

// Get loads a single slot.
func (s *Store) Get(ctx context.Context, slotID string) (TimeSlot, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       slotKeyAttrs(slotID),
	})
	if err != nil {
		return TimeSlot{}, fmt.Errorf("slots: get %s: %w", slotID, err)
	}
	if out.Item == nil {
		return TimeSlot{}, ErrSlotNotFound
	}
	var item slotItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return TimeSlot{}, fmt.Errorf("slots: malformed slot %s: %w", slotID, err)
	}
	return item.toSlot(), nil
}

// PutGrid writes every slot in the grid, replacing items with the same id.
func (s *Store) PutGrid(ctx context.Context, grid map[string]TimeSlot) error {
	var requests []types.WriteRequest
	for _, slot := range grid {
		item, err := attributevalue.MarshalMap(fromSlot(slot))
		if err != nil {
			return fmt.Errorf("slots: marshal slot %s: %w", slot.ID, err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	return s.batchWrite(ctx, requests)
}

// ReplaceGrid removes slots absent from the new grid and writes the rest.
// This is a maintenance operation: it is not atomic and destroys prior slot
// state, bookings included.
func (s *Store) ReplaceGrid(ctx context.Context, grid map[string]TimeSlot) error {
	existing := s.FetchGrid(ctx)
	var requests []types.WriteRequest
	for id := range existing {
		if _, keep := grid[id]; keep {
			continue
		}
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: slotKeyAttrs(id)},
		})
	}
	for _, slot := range grid {
		item, err := attributevalue.MarshalMap(fromSlot(slot))
		if err != nil {
			return fmt.Errorf("slots: marshal slot %s: %w", slot.ID, err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	return s.batchWrite(ctx, requests)
}

func (s *Store) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	for start := 0; start < len(requests); start += maxBatchWrite {
		end := start + maxBatchWrite
		if end > len(requests) {
			end = len(requests)
		}
		_, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.table: requests[start:end]},
		})
		if err != nil {
			return fmt.Errorf("slots: batch write: %w", err)
		}
	}
	return nil
}

// ClosedDates returns the list of fully closed calendar dates. Read failures
// and an absent record both degrade to an empty list.
func (s *Store) ClosedDates(ctx context.Context) []string {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: metaPartition},
			"sk": &types.AttributeValueMemberS{Value: closedDatesKey},
		},
	})
	if err != nil {
		s.logger.Error("failed to fetch closed dates", "error", err)
		return nil
	}
	if out.Item == nil {
		return nil
	}
	var item closedDatesItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		s.logger.Error("malformed closed dates record", "error", err)
		return nil
	}
	return item.Dates
}

// SaveTemplate persists the weekly schedule template alongside the grid it
// expands into, so the admin UI can re-edit the last applied schedule.
func (s *Store) SaveTemplate(ctx context.Context, tmpl WeeklyTemplate) error {
	item, err := attributevalue.MarshalMap(weeklyTemplateItem{
		PK:       metaPartition,
		SK:       weeklyTemplateKey,
		Template: tmpl,
	})
	if err != nil {
		return fmt.Errorf("slots: marshal weekly template: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("slots: save weekly template: %w", err)
	}
	return nil
}

// Template returns the last saved weekly template, or nil when none exists.
func (s *Store) Template(ctx context.Context) (WeeklyTemplate, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: metaPartition},
			"sk": &types.AttributeValueMemberS{Value: weeklyTemplateKey},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("slots: get weekly template: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var item weeklyTemplateItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("slots: malformed weekly template: %w", err)
	}
	return item.Template, nil
}

// Reserve marks the slot occupied by appointmentID. The write is conditional
// on the slot still being available and unoccupied, which makes concurrent
// bookings of the same slot lose cleanly with ErrSlotUnavailable instead of
// double-booking.
func (s *Store) Reserve(ctx context.Context, slotID, appointmentID string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 slotKeyAttrs(slotID),
		UpdateExpression:    aws.String("SET isAvailable = :avail, appointmentId = :appt"),
		ConditionExpression: aws.String("attribute_exists(pk) AND isAvailable = :open AND (attribute_not_exists(appointmentId) OR appointmentId = :none)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":avail": &types.AttributeValueMemberBOOL{Value: false},
			":appt":  &types.AttributeValueMemberS{Value: appointmentID},
			":open":  &types.AttributeValueMemberBOOL{Value: true},
			":none":  &types.AttributeValueMemberS{Value: NoAppointment},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("slots: reserve %s: %w", slotID, err)
	}
	return nil
}

// Release reopens the slot and clears its appointment reference.
func (s *Store) Release(ctx context.Context, slotID string) error {
	if err := s.setAvailability(ctx, slotID, true); err != nil {
		return fmt.Errorf("slots: release %s: %w", slotID, err)
	}
	return nil
}

func (s *Store) setAvailability(ctx context.Context, slotID string, available bool) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 slotKeyAttrs(slotID),
		UpdateExpression:    aws.String("SET isAvailable = :avail, appointmentId = :appt"),
		ConditionExpression: aws.String("attribute_exists(pk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":avail": &types.AttributeValueMemberBOOL{Value: available},
			":appt":  &types.AttributeValueMemberS{Value: NoAppointment},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return ErrSlotNotFound
		}
		return err
	}
	return nil
}

// ReleaseTransactItem builds a transaction entry that reopens a slot, for
// callers that need the release to land together with their own writes. Like
// setAvailability it refuses to upsert: a stale slot id fails the transaction
// instead of minting a phantom slot item.
func ReleaseTransactItem(table, slotID string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:           aws.String(table),
			Key:                 slotKeyAttrs(slotID),
			UpdateExpression:    aws.String("SET isAvailable = :avail, appointmentId = :appt"),
			ConditionExpression: aws.String("attribute_exists(pk)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":avail": &types.AttributeValueMemberBOOL{Value: true},
				":appt":  &types.AttributeValueMemberS{Value: NoAppointment},
			},
		},
	}
}

func availabilityTransactItem(table, slotID string, available, clearAppointment bool) types.TransactWriteItem {
	expr := "SET isAvailable = :avail"
	values := map[string]types.AttributeValue{
		":avail": &types.AttributeValueMemberBOOL{Value: available},
	}
	if clearAppointment {
		expr += ", appointmentId = :appt"
		values[":appt"] = &types.AttributeValueMemberS{Value: NoAppointment}
	}
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(table),
			Key:                       slotKeyAttrs(slotID),
			UpdateExpression:          aws.String(expr),
			ExpressionAttributeValues: values,
		},
	}
}

func (s *Store) closedDatesTransactItem(dates []string) (types.TransactWriteItem, error) {
	if dates == nil {
		dates = []string{}
	}
	item, err := attributevalue.MarshalMap(closedDatesItem{
		PK:    metaPartition,
		SK:    closedDatesKey,
		Dates: dates,
	})
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("slots: marshal closed dates: %w", err)
	}
	return types.TransactWriteItem{
		Put: &types.Put{TableName: aws.String(s.table), Item: item},
	}, nil
}

// applyTransact submits the writes as a single transaction. DynamoDB caps a
// transaction at 100 items; larger change sets are chunked and lose atomicity
// across chunks, which only happens for oversized admin maintenance batches.
func (s *Store) applyTransact(ctx context.Context, items []types.TransactWriteItem) error {
	const maxTransact = 100
	for start := 0; start < len(items); start += maxTransact {
		end := start + maxTransact
		if end > len(items) {
			end = len(items)
		}
		if len(items) > maxTransact {
			s.logger.Warn("transactional write exceeds transaction limit, chunking", "items", len(items))
		}
		_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items[start:end],
		})
		if err != nil {
			return fmt.Errorf("slots: transactional write: %w", err)
		}
	}
	return nil
}
