// Package docs holds the OpenAPI description served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/webhooks/payments": {
            "post": {
                "description": "Verify, store and reconcile a provider event. Redeliveries are acknowledged without side effects.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Webhooks"],
                "summary": "Payment provider webhook",
                "parameters": [
                    {"type": "string", "description": "hex HMAC-SHA256 of timestamp.payload", "name": "X-Signature", "in": "header", "required": true},
                    {"type": "string", "description": "unix seconds", "name": "X-Signature-Timestamp", "in": "header", "required": true},
                    {"description": "Provider event", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.WebhookPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "properties": {"status": {"type": "string"}}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/accounts/me/balance": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Balance of the caller's DGT account; accounts never touched report 0",
                "produces": ["application/json"],
                "tags": ["Accounts"],
                "summary": "Get balance",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.BalanceResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/accounts/me/entries": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Newest entries of the caller's account first",
                "produces": ["application/json"],
                "tags": ["Accounts"],
                "summary": "List ledger entries",
                "parameters": [
                    {"type": "integer", "description": "max entries (default 50, max 500)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.LedgerEntry"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/orders/purchase": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Record a pending purchase; DGT is credited when the provider confirms payment",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Orders"],
                "summary": "Create purchase order",
                "parameters": [
                    {"description": "Purchase order", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.PurchaseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.OrderView"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/orders/withdrawal": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Debit the DGT immediately; it is refunded if the provider reports failure",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Orders"],
                "summary": "Create withdrawal order",
                "parameters": [
                    {"description": "Withdrawal order", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.WithdrawalRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.OrderView"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/orders/{orderId}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Poll an order's status",
                "produces": ["application/json"],
                "tags": ["Orders"],
                "summary": "Get order",
                "parameters": [
                    {"type": "string", "description": "Order ID", "name": "orderId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.OrderView"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/orders/{orderId}/qr": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "QR code of the provider payment link for the order",
                "produces": ["image/png"],
                "tags": ["Orders"],
                "summary": "Get order QR code",
                "parameters": [
                    {"type": "string", "description": "Order ID", "name": "orderId", "in": "path", "required": true},
                    {"type": "integer", "description": "image size in pixels (64-1024)", "name": "size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.BalanceResponse": {
            "type": "object",
            "properties": {
                "account": {"type": "string"},
                "balance": {"type": "integer"}
            }
        },
        "handlers.PurchaseRequest": {
            "type": "object",
            "required": ["amount", "currency", "externalAmount"],
            "properties": {
                "amount": {"type": "integer"},
                "currency": {"type": "string"},
                "externalAmount": {"type": "string"},
                "externalReference": {"type": "string"},
                "payUri": {"type": "string"}
            }
        },
        "handlers.WithdrawalRequest": {
            "type": "object",
            "required": ["address", "amount", "currency", "externalAmount"],
            "properties": {
                "address": {"type": "string"},
                "amount": {"type": "integer"},
                "currency": {"type": "string"},
                "externalAmount": {"type": "string"}
            }
        },
        "models.LedgerEntry": {
            "type": "object",
            "properties": {
                "account": {"type": "string"},
                "amount": {"type": "integer"},
                "counterparty": {"type": "string"},
                "created_at": {"type": "string"},
                "external_reference": {"type": "string"},
                "id": {"type": "string"},
                "kind": {"type": "string"},
                "reverses_entry_id": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "models.OrderView": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "external_amount": {"type": "string"},
                "external_currency": {"type": "string"},
                "finalized_at": {"type": "string"},
                "id": {"type": "string"},
                "kind": {"type": "string"},
                "requested_amount": {"type": "integer"},
                "status": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "models.WebhookPayload": {
            "type": "object",
            "required": ["externalEventId", "externalEventType", "externalReference"],
            "properties": {
                "actualAmount": {"type": "string"},
                "amount": {"type": "string"},
                "createdAt": {"type": "string"},
                "currency": {"type": "string"},
                "externalEventId": {"type": "string"},
                "externalEventType": {"type": "string"},
                "externalReference": {"type": "string"},
                "status": {"type": "string"},
                "txHash": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "services.ErrorResponse": {
            "type": "object",
            "properties": {
                "details": {"type": "object", "additionalProperties": {"type": "string"}},
                "error": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "DGT Ledger API",
	Description:      "Internal DGT token ledger, orders and payment webhooks",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
