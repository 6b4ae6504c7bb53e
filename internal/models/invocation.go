package models

import "github.com/aws/aws-lambda-go/events"

// RawSearchField is the resolver field that names its collection explicitly
const RawSearchField = "rawSearch"

// Invocation is the decoded inbound payload. It is either a *ChangeBatch or
// a *QueryInvocation.
type Invocation interface {
	invocation()
}

// ChangeBatch is a batch of stream records delivered in one invocation
type ChangeBatch struct {
	Records []events.DynamoDBEventRecord
}

// QueryInvocation is a resolver invocation carrying search arguments
type QueryInvocation struct {
	TypeName  string         `json:"typeName"`
	FieldName string         `json:"fieldName,omitempty"`
	TableName string         `json:"tableName,omitempty"`
	Arguments QueryArguments `json:"-"`
}

// QueryArguments are the resolver arguments of a search query
type QueryArguments struct {
	Collection       string                 `json:"collection,omitempty"`
	SearchParameters map[string]interface{} `json:"searchParameters"`
}

func (*ChangeBatch) invocation()     {}
func (*QueryInvocation) invocation() {}

// SearchRequest is a search against a single collection
type SearchRequest struct {
	Collection string
	Parameters map[string]interface{}
}
