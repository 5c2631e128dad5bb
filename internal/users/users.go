// Package users stores patient profiles and the admin allowlist.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/esthetix/clinic-portal/pkg/logging"
)

const (
	userPartition  = "USER"
	adminPartition = "ADMIN"
)

// ErrUserNotFound indicates no profile exists for the uid.
var ErrUserNotFound = errors.New("users: user not found")

// Profile is a patient's contact record.
type Profile struct {
	UID         string    `json:"uid" dynamodbav:"sk"`
	Name        string    `json:"name" dynamodbav:"name"`
	Email       string    `json:"email" dynamodbav:"email"`
	Phone       string    `json:"phone" dynamodbav:"phone"`
	Address     string    `json:"address" dynamodbav:"address"`
	DateOfBirth string    `json:"dateOfBirth" dynamodbav:"dateOfBirth"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// Complete reports whether every field required for booking is filled in.
func (p Profile) Complete() bool {
	for _, v := range []string{p.Name, p.Email, p.Phone, p.Address, p.DateOfBirth} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

type profileItem struct {
	PK string `dynamodbav:"pk"`
	Profile
}

type adminItem struct {
	PK      string    `dynamodbav:"pk"`
	UID     string    `dynamodbav:"sk"`
	Role    string    `dynamodbav:"role"`
	AddedAt time.Time `dynamodbav:"addedAt"`
}

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Store persists profiles and admin records in the shared schedule table.
type Store struct {
	client dynamoAPI
	table  string
	logger *logging.Logger
}

// NewStore builds a user store on the provided DynamoDB client.
func NewStore(client dynamoAPI, table string, logger *logging.Logger) *Store {
	if client == nil {
		panic("users: dynamodb client cannot be nil")
	}
	if table == "" {
		panic("users: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{client: client, table: table, logger: logger}
}

func keyAttrs(partition, uid string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: partition},
		"sk": &types.AttributeValueMemberS{Value: uid},
	}
}

// Get loads one profile.
func (s *Store) Get(ctx context.Context, uid string) (Profile, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       keyAttrs(userPartition, uid),
	})
	if err != nil {
		return Profile{}, fmt.Errorf("users: get %s: %w", uid, err)
	}
	if out.Item == nil {
		return Profile{}, ErrUserNotFound
	}
	var item profileItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return Profile{}, fmt.Errorf("users: malformed profile %s: %w", uid, err)
	}
	return item.Profile, nil
}

// Put upserts a profile, stamping CreatedAt on first write.
func (s *Store) Put(ctx context.Context, profile Profile) error {
	now := time.Now().UTC()
	profile.UpdatedAt = now
	if profile.CreatedAt.IsZero() {
		if existing, err := s.Get(ctx, profile.UID); err == nil {
			profile.CreatedAt = existing.CreatedAt
		} else {
			profile.CreatedAt = now
		}
	}

	item, err := attributevalue.MarshalMap(profileItem{PK: userPartition, Profile: profile})
	if err != nil {
		return fmt.Errorf("users: marshal profile %s: %w", profile.UID, err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("users: put profile %s: %w", profile.UID, err)
	}
	return nil
}

// IsAdmin reports whether the uid has an admin record with the admin role.
// Lookup failures degrade to false so a storage outage can never widen
// access.
func (s *Store) IsAdmin(ctx context.Context, uid string) bool {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       keyAttrs(adminPartition, uid),
	})
	if err != nil {
		s.logger.Error("admin lookup failed", "uid", uid, "error", err)
		return false
	}
	if out.Item == nil {
		return false
	}
	var item adminItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		s.logger.Error("malformed admin record", "uid", uid, "error", err)
		return false
	}
	return item.Role == "admin"
}

// GrantAdmin records the uid as an admin.
func (s *Store) GrantAdmin(ctx context.Context, uid string) error {
	item, err := attributevalue.MarshalMap(adminItem{
		PK:      adminPartition,
		UID:     uid,
		Role:    "admin",
		AddedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("users: marshal admin %s: %w", uid, err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("users: grant admin %s: %w", uid, err)
	}
	return nil
}

// RevokeAdmin removes the uid's admin record.
func (s *Store) RevokeAdmin(ctx context.Context, uid string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       keyAttrs(adminPartition, uid),
	}); err != nil {
		return fmt.Errorf("users: revoke admin %s: %w", uid, err)
	}
	return nil
}
