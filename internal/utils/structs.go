package utils

import (
	"fmt"
	"reflect"
)

var ColumnTag = "db"

// StructTagValues returns the column names of input in field order.
func StructTagValues(input any) []string {
	fields := taggedFields(input)

	result := make([]string, 0, len(fields))
	for _, f := range fields {
		result = append(result, f.column)
	}

	return result
}

// StructToMap maps column name to field value, skipping any column in omit.
func StructToMap(input any, omit ...string) map[string]any {
	result := make(map[string]any)

fieldloop:
	for _, f := range taggedFields(input) {
		for _, o := range omit {
			if f.column == o {
				continue fieldloop
			}
		}
		result[f.column] = f.value
	}

	return result
}

type taggedField struct {
	column string
	value  any
}

func taggedFields(input any) []taggedField {
	itemValue := reflect.ValueOf(input)
	if itemValue.Kind() == reflect.Ptr {
		itemValue = itemValue.Elem()
	}

	if itemValue.Kind() != reflect.Struct {
		panic("input must be a pointer to a struct or a struct")
	}

	itemType := itemValue.Type()

	fields := make([]taggedField, 0, itemValue.NumField())
	for i := 0; i < itemValue.NumField(); i++ {
		if itemType.Field(i).PkgPath != "" {
			continue
		}

		tagValue := itemType.Field(i).Tag.Get(ColumnTag)
		if tagValue == "" || tagValue == "-" {
			continue
		}

		fields = append(fields, taggedField{column: tagValue, value: itemValue.Field(i).Interface()})
	}

	return fields
}

func ErrorWrapOrNil(err error, msg string) error {
	if err == nil {
		return nil
	}

	if msg == "" {
		return err
	}

	return fmt.Errorf("%s: %w", msg, err)
}
