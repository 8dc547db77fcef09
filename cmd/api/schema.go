package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const maxBodyBytes = 1 << 20

var errInvalidBody = errors.New("api: invalid request body")

var (
	createDisputeSchema = mustSchema(`{
		"type": "object",
		"required": ["transactionId", "reasonCode"],
		"properties": {
			"transactionId": {"type": "string", "minLength": 1, "maxLength": 64},
			"reasonCode": {"type": "string", "minLength": 1, "maxLength": 64}
		}
	}`)
	updateStatusSchema = mustSchema(`{
		"type": "object",
		"required": ["statusCode"],
		"properties": {
			"statusCode": {"type": "string", "minLength": 1, "maxLength": 64}
		}
	}`)
	registerSchema = mustSchema(`{
		"type": "object",
		"required": ["email", "password", "fullName"],
		"properties": {
			"email": {"type": "string", "maxLength": 254},
			"password": {"type": "string", "maxLength": 72},
			"fullName": {"type": "string", "maxLength": 200},
			"role": {"type": "string"}
		}
	}`)
	loginSchema = mustSchema(`{
		"type": "object",
		"required": ["email", "password"],
		"properties": {
			"email": {"type": "string"},
			"password": {"type": "string"}
		}
	}`)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("api: compile schema: %v", err))
	}
	return s
}

// decodeBody validates the JSON body against schema before decoding it into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, schema *gojsonschema.Schema, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: malformed JSON", errInvalidBody)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", errInvalidBody, strings.Join(msgs, "; "))
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}
