package schema

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
)

// ToJSONSchema converts a struct to a JSON schema
func ToJSONSchema[T any](t T) (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(t)

	jsonSchemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(jsonSchemaBytes), nil
}

// KeychainFields returns the JSON names of fields tagged with
// keychain:"true", including fields of embedded structs. Hosts use the
// list to know which config values belong in secure storage.
func KeychainFields[T any](t T) []string {
	fields := []string{}
	collectKeychainFields(reflect.TypeOf(t), &fields)

	return fields
}

func collectKeychainFields(t reflect.Type, fields *[]string) {
	if t == nil || t.Kind() != reflect.Struct {
		return
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous {
			collectKeychainFields(field.Type, fields)
			continue
		}

		if field.Tag.Get("keychain") != "true" {
			continue
		}

		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" {
			name = field.Name
		}

		*fields = append(*fields, name)
	}
}
