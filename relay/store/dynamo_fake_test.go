package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory DynamoAPI that understands the handful of
// expressions Dynamo issues.
type fakeDynamo struct {
	mu     sync.Mutex
	tables map[string]*fakeTable
	calls  map[string]int
}

type fakeTable struct {
	hash, rangeK string
	items        map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{tables: map[string]*fakeTable{}, calls: map[string]int{}}
}

func (f *fakeDynamo) table(name *string) (*fakeTable, error) {
	t, ok := f.tables[aws.ToString(name)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found: " + aws.ToString(name))}
	}
	return t, nil
}

func attrString(v types.AttributeValue) string {
	switch a := v.(type) {
	case *types.AttributeValueMemberS:
		return "S:" + a.Value
	case *types.AttributeValueMemberN:
		return "N:" + a.Value
	case *types.AttributeValueMemberBOOL:
		return fmt.Sprintf("B:%t", a.Value)
	}
	return fmt.Sprintf("%T", v)
}

func (t *fakeTable) key(item map[string]types.AttributeValue) string {
	k := attrString(item[t.hash])
	if t.rangeK != "" {
		k += "|" + attrString(item[t.rangeK])
	}
	return k
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func checkCondition(expr *string, existing map[string]types.AttributeValue) bool {
	e := aws.ToString(expr)
	switch {
	case e == "":
		return true
	case strings.HasPrefix(e, "attribute_not_exists("):
		_, ok := existing[strings.TrimSuffix(strings.TrimPrefix(e, "attribute_not_exists("), ")")]
		return !ok
	case strings.HasPrefix(e, "attribute_exists("):
		_, ok := existing[strings.TrimSuffix(strings.TrimPrefix(e, "attribute_exists("), ")")]
		return ok
	}
	panic("fakeDynamo: unsupported condition " + e)
}

func applyUpdate(expr string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) map[string]types.AttributeValue {
	updated := map[string]types.AttributeValue{}
	switch {
	case strings.HasPrefix(expr, "SET "):
		for _, part := range strings.Split(strings.TrimPrefix(expr, "SET "), ",") {
			name, ref, _ := strings.Cut(part, "=")
			name = strings.TrimSpace(name)
			item[name] = values[strings.TrimSpace(ref)]
			updated[name] = item[name]
		}
	case strings.HasPrefix(expr, "ADD "):
		fields := strings.Fields(strings.TrimPrefix(expr, "ADD "))
		name, ref := fields[0], fields[1]
		cur := getN(item, name)
		delta, _ := strconv.ParseInt(values[ref].(*types.AttributeValueMemberN).Value, 10, 64)
		item[name] = nAttr(cur + delta)
		updated[name] = item[name]
	default:
		panic("fakeDynamo: unsupported update " + expr)
	}
	return updated
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetItem"]++
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[t.key(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["PutItem"]++
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k := t.key(in.Item)
	if !checkCondition(in.ConditionExpression, t.items[k]) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("conditional check failed")}
	}
	t.items[k] = copyItem(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["UpdateItem"]++
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k := t.key(in.Key)
	existing := t.items[k]
	if !checkCondition(in.ConditionExpression, existing) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("conditional check failed")}
	}
	item := copyItem(in.Key)
	for name, v := range existing {
		item[name] = v
	}
	updated := applyUpdate(aws.ToString(in.UpdateExpression), in.ExpressionAttributeValues, item)
	t.items[k] = item
	return &dynamodb.UpdateItemOutput{Attributes: updated}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DeleteItem"]++
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	delete(t.items, t.key(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Query"]++
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	name, ref, _ := strings.Cut(aws.ToString(in.KeyConditionExpression), "=")
	want := attrString(in.ExpressionAttributeValues[strings.TrimSpace(ref)])
	var items []map[string]types.AttributeValue
	for _, item := range t.items {
		if attrString(item[strings.TrimSpace(name)]) == want {
			items = append(items, copyItem(item))
		}
	}
	sort.Slice(items, func(i, j int) bool { return getN(items[i], t.rangeK) < getN(items[j], t.rangeK) })
	return &dynamodb.QueryOutput{Items: items}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Scan"]++
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]types.AttributeValue, 0, len(t.items))
	for _, item := range t.items {
		items = append(items, copyItem(item))
	}
	return &dynamodb.ScanOutput{Items: items}, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["TransactWriteItems"]++

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, ti := range in.TransactItems {
		reasons[i].Code = aws.String("None")
		var (
			name *string
			key  map[string]types.AttributeValue
			cond *string
		)
		switch {
		case ti.Put != nil:
			name, key, cond = ti.Put.TableName, ti.Put.Item, ti.Put.ConditionExpression
		case ti.Update != nil:
			name, key, cond = ti.Update.TableName, ti.Update.Key, ti.Update.ConditionExpression
		default:
			panic("fakeDynamo: unsupported transact item")
		}
		t, err := f.table(name)
		if err != nil {
			return nil, err
		}
		if !checkCondition(cond, t.items[t.key(key)]) {
			reasons[i].Code = aws.String("ConditionalCheckFailed")
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{Message: aws.String("transaction cancelled"), CancellationReasons: reasons}
	}

	for _, ti := range in.TransactItems {
		if ti.Put != nil {
			t, _ := f.table(ti.Put.TableName)
			t.items[t.key(ti.Put.Item)] = copyItem(ti.Put.Item)
			continue
		}
		t, _ := f.table(ti.Update.TableName)
		k := t.key(ti.Update.Key)
		item := copyItem(t.items[k])
		applyUpdate(aws.ToString(ti.Update.UpdateExpression), ti.Update.ExpressionAttributeValues, item)
		t.items[k] = item
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeDynamo) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DescribeTable"]++
	if _, err := f.table(in.TableName); err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{
		TableName:   in.TableName,
		TableStatus: types.TableStatusActive,
	}}, nil
}

func (f *fakeDynamo) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateTable"]++
	t := &fakeTable{items: map[string]map[string]types.AttributeValue{}}
	for _, k := range in.KeySchema {
		if k.KeyType == types.KeyTypeHash {
			t.hash = aws.ToString(k.AttributeName)
		} else {
			t.rangeK = aws.ToString(k.AttributeName)
		}
	}
	f.tables[aws.ToString(in.TableName)] = t
	return &dynamodb.CreateTableOutput{}, nil
}
