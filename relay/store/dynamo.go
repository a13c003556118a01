package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	coredatabase "github.com/m3rciful/feedbackbot/core/database"
	"github.com/m3rciful/feedbackbot/core/logger"
	"github.com/m3rciful/feedbackbot/relay/model"
)

// DynamoAPI is the subset of *dynamodb.Client used by Dynamo.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Dynamo is the DynamoDB backed Repository.
//
// Tables, all prefixed with the configured prefix:
//
//	_inquiries       PK id (N)
//	_replies         PK inquiry_id (N), SK id (N)
//	_administrators  PK user_id (N)
//	_counters        PK name (S), holds the id sequences
type Dynamo struct {
	db     DynamoAPI
	prefix string
	now    func() time.Time
}

// NewDynamo wraps an existing client.
func NewDynamo(db DynamoAPI, prefix string) *Dynamo {
	if prefix == "" {
		prefix = "feedbackbot"
	}
	return &Dynamo{db: db, prefix: prefix, now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }}
}

// OpenDynamo builds a client from cfg. With an endpoint set the client talks to
// DynamoDB Local using static credentials and the tables are created if missing.
func OpenDynamo(ctx context.Context, cfg coredatabase.DynamoConfig) (*Dynamo, error) {
	var client *dynamodb.Client
	if cfg.Endpoint != "" {
		region := cfg.Region
		if region == "" {
			region = "dummy"
		}
		awsCfg, err := config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "dummy")),
		)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	} else {
		var opts []func(*config.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Region))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	d := NewDynamo(client, cfg.TablePrefix)
	if cfg.Endpoint != "" {
		if err := d.EnsureTables(ctx); err != nil {
			return nil, err
		}
	}
	logger.Info(ctx, logger.CompDB, "db.connect",
		slog.String("driver", coredatabase.DriverDynamoDB),
		slog.String("endpoint", cfg.Endpoint),
		slog.String("prefix", d.prefix),
	)
	return d, nil
}

func (d *Dynamo) inquiries() string { return d.prefix + "_inquiries" }
func (d *Dynamo) replies() string   { return d.prefix + "_replies" }
func (d *Dynamo) admins() string    { return d.prefix + "_administrators" }
func (d *Dynamo) counters() string  { return d.prefix + "_counters" }

type tableKey struct {
	name    string
	hash    string
	hashT   types.ScalarAttributeType
	rangeK  string
	rangeKT types.ScalarAttributeType
}

func (d *Dynamo) schema() []tableKey {
	return []tableKey{
		{name: d.inquiries(), hash: "id", hashT: types.ScalarAttributeTypeN},
		{name: d.replies(), hash: "inquiry_id", hashT: types.ScalarAttributeTypeN, rangeK: "id", rangeKT: types.ScalarAttributeTypeN},
		{name: d.admins(), hash: "user_id", hashT: types.ScalarAttributeTypeN},
		{name: d.counters(), hash: "name", hashT: types.ScalarAttributeTypeS},
	}
}

// EnsureTables creates any missing table and waits until it is active.
func (d *Dynamo) EnsureTables(ctx context.Context) error {
	for _, t := range d.schema() {
		_, err := d.db.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.name)})
		if err == nil {
			continue
		}
		var nf *types.ResourceNotFoundException
		if !errors.As(err, &nf) {
			return fmt.Errorf("describe table %s: %w", t.name, err)
		}

		attrs := []types.AttributeDefinition{{AttributeName: aws.String(t.hash), AttributeType: t.hashT}}
		keys := []types.KeySchemaElement{{AttributeName: aws.String(t.hash), KeyType: types.KeyTypeHash}}
		if t.rangeK != "" {
			attrs = append(attrs, types.AttributeDefinition{AttributeName: aws.String(t.rangeK), AttributeType: t.rangeKT})
			keys = append(keys, types.KeySchemaElement{AttributeName: aws.String(t.rangeK), KeyType: types.KeyTypeRange})
		}
		_, err = d.db.CreateTable(ctx, &dynamodb.CreateTableInput{
			TableName:            aws.String(t.name),
			AttributeDefinitions: attrs,
			KeySchema:            keys,
			BillingMode:          types.BillingModePayPerRequest,
		})
		if err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
		waiter := dynamodb.NewTableExistsWaiter(d.db)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.name)}, 2*time.Minute); err != nil {
			return fmt.Errorf("wait for table %s: %w", t.name, err)
		}
		logger.Info(ctx, logger.CompMigrate, "table_created", slog.String("table", t.name))
	}
	return nil
}

func (d *Dynamo) nextID(ctx context.Context, sequence string) (int64, error) {
	out, err := d.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.counters()),
		Key:                       map[string]types.AttributeValue{"name": sAttr(sequence)},
		UpdateExpression:          aws.String("ADD seq :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":one": nAttr(1)},
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", sequence, err)
	}
	id := getN(out.Attributes, "seq")
	if id <= 0 {
		return 0, fmt.Errorf("next %s id: counter returned %d", sequence, id)
	}
	return id, nil
}

func (d *Dynamo) CreateInquiry(ctx context.Context, author model.Author, category model.Category, body string) (model.Inquiry, error) {
	if err := validateInquiry(category, body); err != nil {
		return model.Inquiry{}, err
	}
	id, err := d.nextID(ctx, "inquiries")
	if err != nil {
		return model.Inquiry{}, err
	}
	inq := model.Inquiry{ID: id, Author: author, Category: category, Body: body, CreatedAt: d.now()}
	_, err = d.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.inquiries()),
		Item:                inquiryItem(inq),
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return model.Inquiry{}, fmt.Errorf("create inquiry: %w", err)
	}
	return inq, nil
}

func (d *Dynamo) GetInquiry(ctx context.Context, id int64) (model.Inquiry, error) {
	out, err := d.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.inquiries()),
		Key:            map[string]types.AttributeValue{"id": nAttr(id)},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return model.Inquiry{}, fmt.Errorf("get inquiry %d: %w", id, err)
	}
	if out.Item == nil {
		return model.Inquiry{}, ErrNotFound
	}
	return inquiryFromItem(out.Item)
}

func (d *Dynamo) ListRecentInquiries(ctx context.Context, limit int) ([]model.Inquiry, error) {
	items, err := d.scanAll(ctx, d.inquiries())
	if err != nil {
		return nil, fmt.Errorf("list inquiries: %w", err)
	}
	out := make([]model.Inquiry, 0, len(items))
	for _, item := range items {
		inq, err := inquiryFromItem(item)
		if err != nil {
			return nil, err
		}
		out = append(out, inq)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if n := recentLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (d *Dynamo) DeleteInquiry(ctx context.Context, id int64) error {
	_, err := d.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.inquiries()),
		Key:       map[string]types.AttributeValue{"id": nAttr(id)},
	})
	if err != nil {
		return fmt.Errorf("delete inquiry %d: %w", id, err)
	}
	replies, err := d.queryReplies(ctx, id)
	if err != nil {
		return fmt.Errorf("delete replies of %d: %w", id, err)
	}
	for _, item := range replies {
		_, err := d.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(d.replies()),
			Key: map[string]types.AttributeValue{
				"inquiry_id": nAttr(id),
				"id":         nAttr(getN(item, "id")),
			},
		})
		if err != nil {
			return fmt.Errorf("delete replies of %d: %w", id, err)
		}
	}
	return nil
}

func (d *Dynamo) resolveUpdate(id int64) *types.Update {
	return &types.Update{
		TableName:                 aws.String(d.inquiries()),
		Key:                       map[string]types.AttributeValue{"id": nAttr(id)},
		UpdateExpression:          aws.String("SET resolved = :t"),
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":t": &types.AttributeValueMemberBOOL{Value: true}},
	}
}

func (d *Dynamo) MarkResolved(ctx context.Context, id int64) error {
	u := d.resolveUpdate(id)
	_, err := d.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 u.TableName,
		Key:                       u.Key,
		UpdateExpression:          u.UpdateExpression,
		ConditionExpression:       u.ConditionExpression,
		ExpressionAttributeValues: u.ExpressionAttributeValues,
	})
	if conditionFailed(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("resolve inquiry %d: %w", id, err)
	}
	return nil
}

func (d *Dynamo) AddReply(ctx context.Context, inquiryID, responderID int64, text string) (model.Reply, error) {
	if err := validateReply(text); err != nil {
		return model.Reply{}, err
	}
	id, err := d.nextID(ctx, "replies")
	if err != nil {
		return model.Reply{}, err
	}
	reply := model.Reply{ID: id, InquiryID: inquiryID, ResponderID: responderID, Text: text, CreatedAt: d.now()}
	_, err = d.db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: d.resolveUpdate(inquiryID)},
			{Put: &types.Put{
				TableName: aws.String(d.replies()),
				Item: map[string]types.AttributeValue{
					"inquiry_id":   nAttr(reply.InquiryID),
					"id":           nAttr(reply.ID),
					"responder_id": nAttr(reply.ResponderID),
					"body":         sAttr(reply.Text),
					"created_at":   sAttr(formatTime(reply.CreatedAt)),
				},
			}},
		},
	})
	if conditionFailed(err) {
		return model.Reply{}, ErrNotFound
	}
	if err != nil {
		return model.Reply{}, fmt.Errorf("insert reply: %w", err)
	}
	return reply, nil
}

func (d *Dynamo) queryReplies(ctx context.Context, inquiryID int64) ([]map[string]types.AttributeValue, error) {
	var (
		items []map[string]types.AttributeValue
		start map[string]types.AttributeValue
	)
	for {
		out, err := d.db.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(d.replies()),
			KeyConditionExpression:    aws.String("inquiry_id = :id"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":id": nAttr(inquiryID)},
			ScanIndexForward:          aws.Bool(true),
			ConsistentRead:            aws.Bool(true),
			ExclusiveStartKey:         start,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		start = out.LastEvaluatedKey
	}
}

func (d *Dynamo) ListReplies(ctx context.Context, inquiryID int64) ([]model.Reply, error) {
	items, err := d.queryReplies(ctx, inquiryID)
	if err != nil {
		return nil, fmt.Errorf("list replies of %d: %w", inquiryID, err)
	}
	out := make([]model.Reply, 0, len(items))
	for _, item := range items {
		createdAt, err := parseTime(getS(item, "created_at"))
		if err != nil {
			return nil, fmt.Errorf("reply %d: %w", getN(item, "id"), err)
		}
		out = append(out, model.Reply{
			ID:          getN(item, "id"),
			InquiryID:   getN(item, "inquiry_id"),
			ResponderID: getN(item, "responder_id"),
			Text:        getS(item, "body"),
			CreatedAt:   createdAt,
		})
	}
	return out, nil
}

func (d *Dynamo) AddAdministrator(ctx context.Context, userID int64, username string, addedBy int64) (model.Administrator, error) {
	admin := model.Administrator{UserID: userID, AddedAt: d.now()}
	admin.Username.String, admin.Username.Valid = username, username != ""
	admin.AddedBy.Int64, admin.AddedBy.Valid = addedByValue(userID, addedBy)

	item := map[string]types.AttributeValue{
		"user_id":  nAttr(userID),
		"added_at": sAttr(formatTime(admin.AddedAt)),
	}
	if admin.Username.Valid {
		item["username"] = sAttr(username)
	}
	if admin.AddedBy.Valid {
		item["added_by"] = nAttr(admin.AddedBy.Int64)
	}
	_, err := d.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.admins()),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	})
	if conditionFailed(err) {
		return model.Administrator{}, ErrAlreadyExists
	}
	if err != nil {
		return model.Administrator{}, fmt.Errorf("add administrator %d: %w", userID, err)
	}
	return admin, nil
}

func (d *Dynamo) RemoveAdministrator(ctx context.Context, userID int64) error {
	_, err := d.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.admins()),
		Key:       map[string]types.AttributeValue{"user_id": nAttr(userID)},
	})
	if err != nil {
		return fmt.Errorf("remove administrator %d: %w", userID, err)
	}
	return nil
}

func (d *Dynamo) GetAdministrator(ctx context.Context, userID int64) (model.Administrator, error) {
	out, err := d.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.admins()),
		Key:            map[string]types.AttributeValue{"user_id": nAttr(userID)},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return model.Administrator{}, fmt.Errorf("get administrator %d: %w", userID, err)
	}
	if out.Item == nil {
		return model.Administrator{}, ErrNotFound
	}
	return adminFromItem(out.Item)
}

func (d *Dynamo) ListAdministrators(ctx context.Context) ([]int64, error) {
	admins, err := d.Administrators(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(admins))
	for _, a := range admins {
		ids = append(ids, a.UserID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (d *Dynamo) Administrators(ctx context.Context) ([]model.Administrator, error) {
	items, err := d.scanAll(ctx, d.admins())
	if err != nil {
		return nil, fmt.Errorf("list administrators: %w", err)
	}
	out := make([]model.Administrator, 0, len(items))
	for _, item := range items {
		a, err := adminFromItem(item)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.Before(out[j].AddedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (d *Dynamo) scanAll(ctx context.Context, table string) ([]map[string]types.AttributeValue, error) {
	var (
		items []map[string]types.AttributeValue
		start map[string]types.AttributeValue
	)
	for {
		out, err := d.db.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(table),
			ConsistentRead:    aws.Bool(true),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		start = out.LastEvaluatedKey
	}
}

func conditionFailed(err error) bool {
	if err == nil {
		return false
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, r := range tce.CancellationReasons {
			if aws.ToString(r.Code) == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}

func inquiryItem(inq model.Inquiry) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"id":         nAttr(inq.ID),
		"author_id":  nAttr(inq.Author.ID),
		"category":   sAttr(string(inq.Category)),
		"body":       sAttr(inq.Body),
		"resolved":   &types.AttributeValueMemberBOOL{Value: inq.Resolved},
		"created_at": sAttr(formatTime(inq.CreatedAt)),
	}
	for k, v := range map[string]string{
		"author_username":   inq.Username,
		"author_first_name": inq.FirstName,
		"author_last_name":  inq.LastName,
	} {
		if v != "" {
			item[k] = sAttr(v)
		}
	}
	return item
}

func inquiryFromItem(item map[string]types.AttributeValue) (model.Inquiry, error) {
	createdAt, err := parseTime(getS(item, "created_at"))
	if err != nil {
		return model.Inquiry{}, fmt.Errorf("inquiry %d: %w", getN(item, "id"), err)
	}
	return model.Inquiry{
		ID: getN(item, "id"),
		Author: model.Author{
			ID:        getN(item, "author_id"),
			Username:  getS(item, "author_username"),
			FirstName: getS(item, "author_first_name"),
			LastName:  getS(item, "author_last_name"),
		},
		Category:  model.Category(getS(item, "category")),
		Body:      getS(item, "body"),
		Resolved:  getBool(item, "resolved"),
		CreatedAt: createdAt,
	}, nil
}

func adminFromItem(item map[string]types.AttributeValue) (model.Administrator, error) {
	addedAt, err := parseTime(getS(item, "added_at"))
	if err != nil {
		return model.Administrator{}, fmt.Errorf("administrator %d: %w", getN(item, "user_id"), err)
	}
	a := model.Administrator{UserID: getN(item, "user_id"), AddedAt: addedAt}
	if v, ok := item["username"].(*types.AttributeValueMemberS); ok {
		a.Username.String, a.Username.Valid = v.Value, true
	}
	if _, ok := item["added_by"].(*types.AttributeValueMemberN); ok {
		a.AddedBy.Int64, a.AddedBy.Valid = getN(item, "added_by"), true
	}
	return a, nil
}

func nAttr(v int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
}

func sAttr(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

func getS(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func getN(item map[string]types.AttributeValue, key string) int64 {
	if v, ok := item[key].(*types.AttributeValueMemberN); ok {
		n, _ := strconv.ParseInt(v.Value, 10, 64)
		return n
	}
	return 0
}

func getBool(item map[string]types.AttributeValue, key string) bool {
	if v, ok := item[key].(*types.AttributeValueMemberBOOL); ok {
		return v.Value
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
