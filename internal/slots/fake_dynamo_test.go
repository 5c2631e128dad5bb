package slots

import (
	"context"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory stand-in for DynamoDB that understands the
// key layout and the update expressions this package issues.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	queryErr    error
	getErr      error
	updateErr   error
	transactErr error

	batchWrites int
	transacts   int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(item map[string]types.AttributeValue) string {
	return stringAttr(item, "pk") + "|" + stringAttr(item, "sk")
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func boolAttr(item map[string]types.AttributeValue, name string) bool {
	if v, ok := item[name].(*types.AttributeValueMemberBOOL); ok {
		return v.Value
	}
	return false
}

func (f *fakeDynamo) seedGrid(grid map[string]TimeSlot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, slot := range grid {
		f.items[SlotPartition+"|"+slot.ID] = map[string]types.AttributeValue{
			"pk":            &types.AttributeValueMemberS{Value: SlotPartition},
			"sk":            &types.AttributeValueMemberS{Value: slot.ID},
			"day":           &types.AttributeValueMemberS{Value: slot.Day},
			"start":         &types.AttributeValueMemberS{Value: slot.Start},
			"end":           &types.AttributeValueMemberS{Value: slot.End},
			"isAvailable":   &types.AttributeValueMemberBOOL{Value: slot.IsAvailable},
			"appointmentId": &types.AttributeValueMemberS{Value: slot.AppointmentID},
		}
	}
}

func (f *fakeDynamo) slot(id string) map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[SlotPartition+"|"+id]
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := ""
	if v, ok := in.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS); ok {
		pk = v.Value
	}
	var out []map[string]types.AttributeValue
	for _, item := range f.items {
		if stringAttr(item, "pk") == pk {
			out = append(out, item)
		}
	}
	return &dynamodb.QueryOutput{Items: out}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.applyUpdate(itemKey(in.Key), in.ConditionExpression, in.UpdateExpression, in.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchWrites++
	for _, requests := range in.RequestItems {
		if len(requests) > 25 {
			return nil, &types.InternalServerError{Message: aws.String("batch too large")}
		}
		for _, req := range requests {
			switch {
			case req.PutRequest != nil:
				f.items[itemKey(req.PutRequest.Item)] = req.PutRequest.Item
			case req.DeleteRequest != nil:
				delete(f.items, itemKey(req.DeleteRequest.Key))
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	if f.transactErr != nil {
		return nil, f.transactErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transacts++
	for _, item := range in.TransactItems {
		switch {
		case item.Update != nil:
			u := item.Update
			if err := f.applyUpdate(itemKey(u.Key), u.ConditionExpression, u.UpdateExpression, u.ExpressionAttributeValues); err != nil {
				return nil, err
			}
		case item.Put != nil:
			f.items[itemKey(item.Put.Item)] = item.Put.Item
		case item.Delete != nil:
			delete(f.items, itemKey(item.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeDynamo) applyUpdate(key string, condition, update *string, values map[string]types.AttributeValue) error {
	item, exists := f.items[key]

	if condition != nil {
		cond := *condition
		if strings.Contains(cond, "attribute_exists(pk)") && !exists {
			return &types.ConditionalCheckFailedException{Message: aws.String("item missing")}
		}
		if strings.Contains(cond, "isAvailable = :open") {
			want, _ := values[":open"].(*types.AttributeValueMemberBOOL)
			if want == nil || boolAttr(item, "isAvailable") != want.Value {
				return &types.ConditionalCheckFailedException{Message: aws.String("availability check")}
			}
		}
		if strings.Contains(cond, "appointmentId = :none") {
			if _, ok := item["appointmentId"]; ok && stringAttr(item, "appointmentId") != NoAppointment {
				return &types.ConditionalCheckFailedException{Message: aws.String("occupied")}
			}
		}
	}

	if !exists {
		parts := strings.SplitN(key, "|", 2)
		item = map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: parts[0]},
			"sk": &types.AttributeValueMemberS{Value: parts[1]},
		}
		f.items[key] = item
	}
	if update == nil {
		return nil
	}
	if strings.Contains(*update, "isAvailable = :avail") {
		item["isAvailable"] = values[":avail"]
	}
	if strings.Contains(*update, "appointmentId = :appt") {
		item["appointmentId"] = values[":appt"]
	}
	return nil
}
