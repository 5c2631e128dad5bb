package appointments

import (
	"context"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory stand-in for DynamoDB that understands the
// expressions this package and its collaborators issue. It backs the slot,
// user, and appointment stores at once, the way the shared table does in
// production.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	putErr      error
	updateErr   error
	transactErr error

	transacts int
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

func (f *fakeDynamo) item(pk, sk string) map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[pk+"|"+sk]
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, itemKey(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := ""
	if v, ok := in.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS); ok {
		pk = v.Value
	}
	var out []map[string]types.AttributeValue
	for _, item := range f.items {
		if stringAttr(item, "pk") != pk {
			continue
		}
		if !matchesFilter(item, in.FilterExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
			continue
		}
		out = append(out, item)
	}
	return &dynamodb.QueryOutput{Items: out}, nil
}

func matchesFilter(item map[string]types.AttributeValue, filter *string, names map[string]string, values map[string]types.AttributeValue) bool {
	if filter == nil {
		return true
	}
	parts := strings.SplitN(*filter, " = ", 2)
	if len(parts) != 2 {
		return false
	}
	attr := parts[0]
	if resolved, ok := names[attr]; ok {
		attr = resolved
	}
	want, _ := values[parts[1]].(*types.AttributeValueMemberS)
	return want != nil && stringAttr(item, attr) == want.Value
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, requests := range in.RequestItems {
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

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.applyUpdate(itemKey(in.Key), in.ConditionExpression, in.UpdateExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	return &dynamodb.UpdateItemOutput{}, nil
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
			if err := f.applyUpdate(itemKey(u.Key), u.ConditionExpression, u.UpdateExpression, u.ExpressionAttributeNames, u.ExpressionAttributeValues); err != nil {
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

func (f *fakeDynamo) applyUpdate(key string, condition, update *string, names map[string]string, values map[string]types.AttributeValue) error {
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
			if _, ok := item["appointmentId"]; ok && stringAttr(item, "appointmentId") != "none" {
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
	expr := *update
	if strings.Contains(expr, "#s = :status") {
		attr := names["#s"]
		item[attr] = values[":status"]
	}
	if strings.Contains(expr, "isAvailable = :avail") {
		item["isAvailable"] = values[":avail"]
	}
	if strings.Contains(expr, "appointmentId = :appt") {
		item["appointmentId"] = values[":appt"]
	}
	return nil
}
