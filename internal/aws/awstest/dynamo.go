// Package awstest provides in-memory fakes of the AWS clients used by the
// stores so package tests can run without DynamoDB, SQS, SES or CloudWatch.
//
// The DynamoDB fake understands the small expression dialect the stores use:
// SET assignments, attribute_exists/attribute_not_exists, "=" and "<>"
// comparisons joined with AND, and partition-key equality in key conditions.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type keySchema struct {
	pk, sk string
}

type table struct {
	keySchema
	indexes map[string]keySchema
	items   map[string]map[string]types.AttributeValue
}

// Dynamo is a goroutine-safe in-memory DynamoDB.
type Dynamo struct {
	mu       sync.Mutex
	tables   map[string]*table
	failures map[string]error
	Calls    map[string]int
}

func NewDynamo() *Dynamo {
	return &Dynamo{
		tables:   map[string]*table{},
		failures: map[string]error{},
		Calls:    map[string]int{},
	}
}

// CreateTable registers a table with partition key pk and optional sort key sk.
func (d *Dynamo) CreateTable(name, pk, sk string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[name] = &table{
		keySchema: keySchema{pk: pk, sk: sk},
		indexes:   map[string]keySchema{},
		items:     map[string]map[string]types.AttributeValue{},
	}
}

// AddIndex registers a global secondary index.
func (d *Dynamo) AddIndex(tableName, index, pk, sk string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[tableName].indexes[index] = keySchema{pk: pk, sk: sk}
}

// FailNext makes the next call of op ("PutItem", "Query", ...) return err.
func (d *Dynamo) FailNext(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op] = err
}

// Seed stores item without any condition.
func (d *Dynamo) Seed(tableName string, item map[string]types.AttributeValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.tables[tableName]
	k, err := t.key(item)
	if err != nil {
		panic(err)
	}
	t.items[k] = copyItem(item)
}

// Items returns a snapshot of every item in the table.
func (d *Dynamo) Items(tableName string) []map[string]types.AttributeValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.tables[tableName]
	out := make([]map[string]types.AttributeValue, 0, len(t.items))
	for _, it := range t.items {
		out = append(out, copyItem(it))
	}
	return out
}

func (d *Dynamo) begin(op string) error {
	d.Calls[op]++
	if err, ok := d.failures[op]; ok {
		delete(d.failures, op)
		return err
	}
	return nil
}

func (d *Dynamo) table(name *string) (*table, error) {
	if name == nil {
		return nil, errors.New("missing table name")
	}
	t, ok := d.tables[*name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: name}
	}
	return t, nil
}

func (d *Dynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("PutItem"); err != nil {
		return nil, err
	}
	t, err := d.table(params.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.key(params.Item)
	if err != nil {
		return nil, err
	}
	if params.ConditionExpression != nil {
		ok, err := evalCondition(*params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, t.items[k])
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	t.items[k] = copyItem(params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (d *Dynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("GetItem"); err != nil {
		return nil, err
	}
	t, err := d.table(params.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.key(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (d *Dynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("UpdateItem"); err != nil {
		return nil, err
	}
	t, err := d.table(params.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.key(params.Key)
	if err != nil {
		return nil, err
	}
	existing := t.items[k]
	if params.ConditionExpression != nil {
		ok, err := evalCondition(*params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	item := copyItem(existing)
	if item == nil {
		item = copyItem(params.Key)
	}
	if params.UpdateExpression != nil {
		if err := applySet(*params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, item); err != nil {
			return nil, err
		}
	}
	t.items[k] = item
	return &dyn.UpdateItemOutput{Attributes: copyItem(item)}, nil
}

func (d *Dynamo) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("DeleteItem"); err != nil {
		return nil, err
	}
	t, err := d.table(params.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.key(params.Key)
	if err != nil {
		return nil, err
	}
	existing := t.items[k]
	if params.ConditionExpression != nil {
		ok, err := evalCondition(*params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	delete(t.items, k)
	return &dyn.DeleteItemOutput{Attributes: copyItem(existing)}, nil
}

func (d *Dynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("Query"); err != nil {
		return nil, err
	}
	t, err := d.table(params.TableName)
	if err != nil {
		return nil, err
	}
	schema := t.keySchema
	if params.IndexName != nil {
		idx, ok := t.indexes[*params.IndexName]
		if !ok {
			return nil, fmt.Errorf("unknown index %s", *params.IndexName)
		}
		schema = idx
	}
	if params.KeyConditionExpression == nil {
		return nil, errors.New("missing key condition")
	}

	var matched []map[string]types.AttributeValue
	for _, it := range t.items {
		if _, ok := it[schema.pk]; !ok {
			continue
		}
		if _, ok := it[schema.sk]; schema.sk != "" && !ok {
			continue
		}
		ok, err := evalCondition(*params.KeyConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, it)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, it)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return lessAV(matched[i][schema.sk], matched[j][schema.sk])
	})
	if params.ScanIndexForward != nil && !*params.ScanIndexForward {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	if params.Limit != nil && int(*params.Limit) < len(matched) {
		matched = matched[:*params.Limit]
	}

	out := &dyn.QueryOutput{}
	for _, it := range matched {
		if params.FilterExpression != nil {
			ok, err := evalCondition(*params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, it)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out.Items = append(out.Items, copyItem(it))
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func (d *Dynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("TransactWriteItems"); err != nil {
		return nil, err
	}

	type write struct {
		t    *table
		k    string
		item map[string]types.AttributeValue
	}
	writes := make([]write, 0, len(params.TransactItems))
	reasons := make([]types.CancellationReason, 0, len(params.TransactItems))
	failed := false

	for _, ti := range params.TransactItems {
		p := ti.Put
		if p == nil {
			return nil, errors.New("fake supports Put transact items only")
		}
		t, err := d.table(p.TableName)
		if err != nil {
			return nil, err
		}
		k, err := t.key(p.Item)
		if err != nil {
			return nil, err
		}
		code := "None"
		if p.ConditionExpression != nil {
			ok, err := evalCondition(*p.ConditionExpression, p.ExpressionAttributeNames, p.ExpressionAttributeValues, t.items[k])
			if err != nil {
				return nil, err
			}
			if !ok {
				code = "ConditionalCheckFailed"
				failed = true
			}
		}
		reasons = append(reasons, types.CancellationReason{Code: &code})
		writes = append(writes, write{t: t, k: k, item: p.Item})
	}
	if failed {
		return nil, &types.TransactionCanceledException{CancellationReasons: reasons}
	}
	for _, w := range writes {
		w.t.items[w.k] = copyItem(w.item)
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (t *table) key(item map[string]types.AttributeValue) (string, error) {
	pk, ok := item[t.pk]
	if !ok {
		return "", fmt.Errorf("missing partition key %s", t.pk)
	}
	k := avString(pk)
	if t.sk != "" {
		sk, ok := item[t.sk]
		if !ok {
			return "", fmt.Errorf("missing sort key %s", t.sk)
		}
		k += "\x00" + avString(sk)
	}
	return k, nil
}

func evalCondition(expr string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) (bool, error) {
	for _, clause := range strings.Split(expr, " AND ") {
		clause = strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(clause, "attribute_exists(") && strings.HasSuffix(clause, ")"):
			name := resolveName(clause[len("attribute_exists("):len(clause)-1], names)
			if _, ok := item[name]; !ok {
				return false, nil
			}
		case strings.HasPrefix(clause, "attribute_not_exists(") && strings.HasSuffix(clause, ")"):
			name := resolveName(clause[len("attribute_not_exists("):len(clause)-1], names)
			if _, ok := item[name]; ok {
				return false, nil
			}
		case strings.Contains(clause, "<>"):
			lhs, rhs, _ := strings.Cut(clause, "<>")
			got, ok := item[resolveName(strings.TrimSpace(lhs), names)]
			want, err := resolveValue(strings.TrimSpace(rhs), values)
			if err != nil {
				return false, err
			}
			if ok && equalAV(got, want) {
				return false, nil
			}
		case strings.Contains(clause, "="):
			lhs, rhs, _ := strings.Cut(clause, "=")
			got, ok := item[resolveName(strings.TrimSpace(lhs), names)]
			want, err := resolveValue(strings.TrimSpace(rhs), values)
			if err != nil {
				return false, err
			}
			if !ok || !equalAV(got, want) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported condition clause %q", clause)
		}
	}
	return true, nil
}

func applySet(expr string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) error {
	expr = strings.TrimSpace(expr)
	setPart, removePart, _ := strings.Cut(expr, "REMOVE ")
	setPart = strings.TrimSpace(setPart)
	if setPart == "" && removePart == "" || setPart != "" && !strings.HasPrefix(setPart, "SET ") {
		return fmt.Errorf("unsupported update expression %q", expr)
	}
	if setPart != "" {
		for _, assign := range strings.Split(strings.TrimPrefix(setPart, "SET "), ",") {
			lhs, rhs, ok := strings.Cut(assign, "=")
			if !ok {
				return fmt.Errorf("bad assignment %q", assign)
			}
			v, err := resolveValue(strings.TrimSpace(rhs), values)
			if err != nil {
				return err
			}
			item[resolveName(strings.TrimSpace(lhs), names)] = v
		}
	}
	for _, name := range strings.Split(removePart, ",") {
		if name = strings.TrimSpace(name); name != "" {
			delete(item, resolveName(name, names))
		}
	}
	return nil
}

func resolveName(token string, names map[string]string) string {
	if strings.HasPrefix(token, "#") {
		return names[token]
	}
	return token
}

func resolveValue(token string, values map[string]types.AttributeValue) (types.AttributeValue, error) {
	v, ok := values[token]
	if !ok {
		return nil, fmt.Errorf("missing expression value %s", token)
	}
	return v, nil
}

func avString(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberBOOL:
		return strconv.FormatBool(v.Value)
	default:
		return ""
	}
}

func equalAV(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return false
		}
		af, err1 := strconv.ParseFloat(av.Value, 64)
		bf, err2 := strconv.ParseFloat(bv.Value, 64)
		return err1 == nil && err2 == nil && af == bf
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	default:
		return false
	}
}

func lessAV(a, b types.AttributeValue) bool {
	an, aok := a.(*types.AttributeValueMemberN)
	bn, bok := b.(*types.AttributeValueMemberN)
	if aok && bok {
		af, _ := strconv.ParseFloat(an.Value, 64)
		bf, _ := strconv.ParseFloat(bn.Value, 64)
		return af < bf
	}
	return avString(a) < avString(b)
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
