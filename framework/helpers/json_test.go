package helpers

import (
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
)

func TestAsJSONValue(t *testing.T) {
	v := AsJSONValue(map[string]interface{}{"status": "OK", "cnt": 1})
	assert.Equal(t, ldvalue.ObjectType, v.Type())
	assert.Equal(t, "OK", v.GetByKey("status").StringValue())
	assert.Equal(t, 1, v.GetByKey("cnt").IntValue())
}

func TestCanonicalizedJSONString(t *testing.T) {
	v := ldvalue.Parse([]byte(`{"b":[2,{"z":1,"y":true}],"a":"x"}`))
	assert.Equal(t, `{"a":"x","b":[2,{"y":true,"z":1}]}`, CanonicalizedJSONString(v))
}
