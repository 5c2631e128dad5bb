// Package treatments holds the clinic's service catalog: the treatment pages
// shown to patients and the knowledge the chat assistant draws on.
package treatments

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/esthetix/clinic-portal/pkg/logging"
)

const treatmentPartition = "TREATMENT"

// ErrTreatmentNotFound indicates no treatment exists for the page name.
var ErrTreatmentNotFound = errors.New("treatments: treatment not found")

// FAQ is one question/answer pair on a treatment page.
type FAQ struct {
	Question string `json:"question" dynamodbav:"question"`
	Answer   string `json:"answer" dynamodbav:"answer"`
}

// Treatment is one service the clinic offers.
type Treatment struct {
	PageName    string   `json:"pageName" dynamodbav:"sk"`
	Name        string   `json:"name" dynamodbav:"name"`
	Tagline     string   `json:"tagline" dynamodbav:"tagline"`
	Description string   `json:"description" dynamodbav:"description"`
	Benefits    []string `json:"benefits" dynamodbav:"benefits"`
	SideEffects []string `json:"sideEffects" dynamodbav:"sideEffects"`
	Keywords    []string `json:"keywords" dynamodbav:"keywords"`
	FAQs        []FAQ    `json:"faqs" dynamodbav:"faqs"`
	ImageURLs   []string `json:"imageUrls" dynamodbav:"imageUrls"`
}

type treatmentItem struct {
	PK string `dynamodbav:"pk"`
	Treatment
}

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store persists the treatment catalog in the shared schedule table.
type Store struct {
	client dynamoAPI
	table  string
	logger *logging.Logger
}

// NewStore builds a treatment store on the provided DynamoDB client.
func NewStore(client dynamoAPI, table string, logger *logging.Logger) *Store {
	if client == nil {
		panic("treatments: dynamodb client cannot be nil")
	}
	if table == "" {
		panic("treatments: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{client: client, table: table, logger: logger}
}

// Get loads one treatment by page name.
func (s *Store) Get(ctx context.Context, pageName string) (Treatment, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: treatmentPartition},
			"sk": &types.AttributeValueMemberS{Value: pageName},
		},
	})
	if err != nil {
		return Treatment{}, fmt.Errorf("treatments: get %s: %w", pageName, err)
	}
	if out.Item == nil {
		return Treatment{}, ErrTreatmentNotFound
	}
	var item treatmentItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return Treatment{}, fmt.Errorf("treatments: malformed treatment %s: %w", pageName, err)
	}
	return item.Treatment, nil
}

// List returns the whole catalog, ordered by name.
func (s *Store) List(ctx context.Context) ([]Treatment, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: treatmentPartition},
		},
	}

	var out []Treatment
	for {
		page, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("treatments: list: %w", err)
		}
		for _, raw := range page.Items {
			var item treatmentItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				s.logger.Error("malformed treatment item", "error", err)
				continue
			}
			out = append(out, item.Treatment)
		}
		if page.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Put upserts one treatment.
func (s *Store) Put(ctx context.Context, t Treatment) error {
	if t.PageName == "" {
		return fmt.Errorf("treatments: page name cannot be empty")
	}
	item, err := attributevalue.MarshalMap(treatmentItem{PK: treatmentPartition, Treatment: t})
	if err != nil {
		return fmt.Errorf("treatments: marshal %s: %w", t.PageName, err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("treatments: put %s: %w", t.PageName, err)
	}
	return nil
}
