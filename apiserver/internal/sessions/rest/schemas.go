package rest

import "github.com/xeipuuv/gojsonschema"

var issueSessionRequestSchemaLoader = gojsonschema.NewStringLoader(`{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "IssueSessionRequest",
	"type": "object",
	"required": ["userID", "role"],
	"additionalProperties": false,
	"properties": {
		"userID": {
			"type": "string",
			"minLength": 1,
			"maxLength": 256
		},
		"role": {
			"type": "string",
			"enum": ["customer", "restaurant", "delivery_partner", "admin"]
		}
	}
}`)

var exchangeRefreshTokenRequestSchemaLoader = gojsonschema.NewStringLoader(`{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "ExchangeRefreshTokenRequest",
	"type": "object",
	"required": ["refreshToken"],
	"additionalProperties": false,
	"properties": {
		"refreshToken": {
			"type": "string",
			"minLength": 1
		}
	}
}`)
