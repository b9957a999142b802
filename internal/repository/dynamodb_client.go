package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"campaign-assistant/internal/domain"
)

const (
	skCampaign = "META#"
	skProfile  = "PROFILE#"
	ownerIndex = "GSI1"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Client stores campaigns and user profiles in a single DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

func campaignPK(id string) string {
	return "CAMPAIGN#" + id
}

func userPK(id string) string {
	return "USER#" + id
}

func ownerGSIPK(ownerID string) string {
	return "OWNER#" + ownerID
}

// GetCampaign loads a campaign by UUID. Returns domain.ErrNotFound when the
// item does not exist.
func (c *Client) GetCampaign(ctx context.Context, id string) (domain.Campaign, error) {
	item, err := c.getItem(ctx, campaignPK(id), skCampaign)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("repository: GetCampaign: %w", err)
	}
	campaign, err := itemToCampaign(item)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("repository: GetCampaign decode: %w", err)
	}
	return campaign, nil
}

// PutCampaign writes or replaces a campaign document.
func (c *Client) PutCampaign(ctx context.Context, campaign domain.Campaign) error {
	if campaign.UUID == "" || campaign.OwnerID == "" {
		return errors.New("repository: PutCampaign: uuid and owner are required")
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      campaignItem(campaign),
	})
	if err != nil {
		return fmt.Errorf("repository: PutCampaign: %w", err)
	}
	return nil
}

// ListCampaignsByOwner queries the owner index, following pagination, and
// returns campaigns oldest first.
func (c *Client) ListCampaignsByOwner(ctx context.Context, ownerID string) ([]domain.Campaign, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		IndexName:              aws.String(ownerIndex),
		KeyConditionExpression: aws.String("GSI1PK = :owner"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: ownerGSIPK(ownerID)},
		},
		ScanIndexForward: aws.Bool(true),
	}

	campaigns := []domain.Campaign{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("repository: ListCampaignsByOwner: %w", err)
		}
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: ListCampaignsByOwner query: %w", err)
		}
		for _, item := range out.Items {
			campaign, err := itemToCampaign(item)
			if err != nil {
				return nil, fmt.Errorf("repository: ListCampaignsByOwner unmarshal: %w", err)
			}
			campaigns = append(campaigns, campaign)
		}
		if len(out.LastEvaluatedKey) == 0 {
			return campaigns, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// GetUser loads a user profile. Returns domain.ErrNotFound when missing.
func (c *Client) GetUser(ctx context.Context, id string) (domain.User, error) {
	item, err := c.getItem(ctx, userPK(id), skProfile)
	if err != nil {
		return domain.User{}, fmt.Errorf("repository: GetUser: %w", err)
	}
	user, err := itemToUser(item)
	if err != nil {
		return domain.User{}, fmt.Errorf("repository: GetUser decode: %w", err)
	}
	return user, nil
}

// PutUser writes or replaces a user profile.
func (c *Client) PutUser(ctx context.Context, user domain.User) error {
	if user.ID == "" {
		return errors.New("repository: PutUser: user id is required")
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      userItem(user),
	})
	if err != nil {
		return fmt.Errorf("repository: PutUser: %w", err)
	}
	return nil
}

// CreateUser writes a new user profile. Returns domain.ErrAlreadyExists when
// a profile with the same id is already stored.
func (c *Client) CreateUser(ctx context.Context, user domain.User) error {
	if user.ID == "" {
		return errors.New("repository: CreateUser: user id is required")
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                userItem(user),
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("repository: CreateUser %q: %w", user.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("repository: CreateUser: %w", err)
	}
	return nil
}

func (c *Client) getItem(ctx context.Context, pk, sk string) (map[string]types.AttributeValue, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Item) == 0 {
		return nil, domain.ErrNotFound
	}
	return out.Item, nil
}

func campaignItem(campaign domain.Campaign) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: campaignPK(campaign.UUID)},
		"SK":          &types.AttributeValueMemberS{Value: skCampaign},
		"GSI1PK":      &types.AttributeValueMemberS{Value: ownerGSIPK(campaign.OwnerID)},
		"GSI1SK":      &types.AttributeValueMemberS{Value: formatTime(campaign.CreatedAt)},
		"uuid":        &types.AttributeValueMemberS{Value: campaign.UUID},
		"ownerId":     &types.AttributeValueMemberS{Value: campaign.OwnerID},
		"title":       &types.AttributeValueMemberS{Value: campaign.Title},
		"description": &types.AttributeValueMemberS{Value: campaign.Description},
		"groups":      listAttr(campaign.Groups),
		"createdAt":   &types.AttributeValueMemberS{Value: formatTime(campaign.CreatedAt)},
		"updatedAt":   &types.AttributeValueMemberS{Value: formatTime(campaign.UpdatedAt)},
	}
}

func userItem(user domain.User) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":     &types.AttributeValueMemberS{Value: userPK(user.ID)},
		"SK":     &types.AttributeValueMemberS{Value: skProfile},
		"userId": &types.AttributeValueMemberS{Value: user.ID},
		"name":   &types.AttributeValueMemberS{Value: user.Name},
		"email":  &types.AttributeValueMemberS{Value: user.Email},
		"groups": listAttr(user.Groups),
	}
}

// itemToCampaign converts a DynamoDB attribute map to a Campaign.
func itemToCampaign(item map[string]types.AttributeValue) (domain.Campaign, error) {
	id, err := strAttr(item, "uuid")
	if err != nil {
		return domain.Campaign{}, err
	}
	owner, err := strAttr(item, "ownerId")
	if err != nil {
		return domain.Campaign{}, err
	}
	title, _ := strAttr(item, "title")             // allow empty
	description, _ := strAttr(item, "description") // allow empty
	groups, err := strListAttr(item, "groups")
	if err != nil {
		return domain.Campaign{}, err
	}
	createdAt, err := timeAttr(item, "createdAt")
	if err != nil {
		return domain.Campaign{}, err
	}
	updatedAt, err := timeAttr(item, "updatedAt")
	if err != nil {
		return domain.Campaign{}, err
	}

	return domain.Campaign{
		UUID:        id,
		OwnerID:     owner,
		Title:       title,
		Description: description,
		Groups:      groups,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

func itemToUser(item map[string]types.AttributeValue) (domain.User, error) {
	id, err := strAttr(item, "userId")
	if err != nil {
		return domain.User{}, err
	}
	name, _ := strAttr(item, "name")
	email, _ := strAttr(item, "email")
	groups, err := strListAttr(item, "groups")
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: id, Name: name, Email: email, Groups: groups}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func listAttr(values []string) *types.AttributeValueMemberL {
	l := make([]types.AttributeValue, 0, len(values))
	for _, v := range values {
		l = append(l, &types.AttributeValueMemberS{Value: v})
	}
	return &types.AttributeValueMemberL{Value: l}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

// strListAttr reads a list of strings; a missing attribute decodes as empty.
func strListAttr(item map[string]types.AttributeValue, key string) ([]string, error) {
	v, ok := item[key]
	if !ok {
		return []string{}, nil
	}
	l, ok := v.(*types.AttributeValueMemberL)
	if !ok {
		return nil, fmt.Errorf("repository: attribute %q is not a list", key)
	}
	out := make([]string, 0, len(l.Value))
	for i, elem := range l.Value {
		s, ok := elem.(*types.AttributeValueMemberS)
		if !ok {
			return nil, fmt.Errorf("repository: attribute %q[%d] is not a string", key, i)
		}
		out = append(out, s.Value)
	}
	return out, nil
}

func timeAttr(item map[string]types.AttributeValue, key string) (time.Time, error) {
	raw, err := strAttr(item, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return t, nil
}
