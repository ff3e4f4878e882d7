// Package docs holds the OpenAPI document served under /swagger.
// Regenerate with: swag init -g cmd/api/main.go
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
		"/health": {
			"get": {
				"tags": [
					"health"
				],
				"summary": "Liveness probe",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/health/ready": {
			"get": {
				"tags": [
					"health"
				],
				"summary": "Readiness probe",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/me": {
			"get": {
				"tags": [
					"session"
				],
				"summary": "Current user",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/templates": {
			"get": {
				"tags": [
					"templates"
				],
				"summary": "List templates",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"post": {
				"tags": [
					"templates"
				],
				"summary": "Create a template",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created"
					}
				}
			}
		},
		"/api/templates/{id}": {
			"get": {
				"tags": [
					"templates"
				],
				"summary": "Get a template",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"put": {
				"tags": [
					"templates"
				],
				"summary": "Update a template",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"delete": {
				"tags": [
					"templates"
				],
				"summary": "Delete a template",
				"produces": [
					"application/json"
				],
				"responses": {
					"204": {
						"description": "No Content"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/documents": {
			"get": {
				"tags": [
					"documents"
				],
				"summary": "List documents",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"post": {
				"tags": [
					"documents"
				],
				"summary": "Create a draft",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created"
					}
				}
			}
		},
		"/api/documents/{id}": {
			"get": {
				"tags": [
					"documents"
				],
				"summary": "Get a document with its progress",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"put": {
				"tags": [
					"documents"
				],
				"summary": "Edit a draft or a document waiting for revision",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"delete": {
				"tags": [
					"documents"
				],
				"summary": "Delete a document nobody has signed",
				"produces": [
					"application/json"
				],
				"responses": {
					"204": {
						"description": "No Content"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/documents/{id}/slots/{slotId}": {
			"put": {
				"tags": [
					"documents"
				],
				"summary": "Assign a signature slot to a user",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"type": "string",
						"name": "slotId",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/documents/{id}/submit": {
			"post": {
				"tags": [
					"documents"
				],
				"summary": "Submit a draft for signatures",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/documents/{id}/signatories/{signatoryId}/sign": {
			"post": {
				"tags": [
					"documents"
				],
				"summary": "Approve as a signatory",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"type": "string",
						"name": "signatoryId",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/documents/{id}/signatories/{signatoryId}/reject": {
			"post": {
				"tags": [
					"documents"
				],
				"summary": "Reject as a signatory",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"type": "string",
						"name": "signatoryId",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/documents/{id}/signatories/{signatoryId}/revoke": {
			"post": {
				"tags": [
					"documents"
				],
				"summary": "Revoke an approval (administrators)",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"type": "string",
						"name": "signatoryId",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/documents/{id}/request-revision": {
			"post": {
				"tags": [
					"documents"
				],
				"summary": "Send the document back to its creator",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/documents/{id}/submit-revision": {
			"post": {
				"tags": [
					"documents"
				],
				"summary": "Resubmit a revised document",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/documents/{id}/progress": {
			"get": {
				"tags": [
					"documents"
				],
				"summary": "Signature progress",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/documents/{id}/revisions": {
			"get": {
				"tags": [
					"documents"
				],
				"summary": "Revision history, oldest first",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/documents/register/export": {
			"get": {
				"tags": [
					"documents"
				],
				"summary": "Export the register of certified documents",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/verify/{code}": {
			"get": {
				"tags": [
					"verification"
				],
				"summary": "Verify a certificate",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "code",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/notifications": {
			"get": {
				"tags": [
					"notifications"
				],
				"summary": "List notifications",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/notifications/unread-count": {
			"get": {
				"tags": [
					"notifications"
				],
				"summary": "Unread notification count",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/notifications/{id}/read": {
			"put": {
				"tags": [
					"notifications"
				],
				"summary": "Mark a notification as read",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/notifications/mark-all-read": {
			"post": {
				"tags": [
					"notifications"
				],
				"summary": "Mark every notification as read",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/webhooks": {
			"get": {
				"tags": [
					"webhooks"
				],
				"summary": "List webhooks",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"post": {
				"tags": [
					"webhooks"
				],
				"summary": "Register a webhook",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created"
					}
				}
			}
		},
		"/api/webhooks/{id}": {
			"get": {
				"tags": [
					"webhooks"
				],
				"summary": "Get a webhook",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"put": {
				"tags": [
					"webhooks"
				],
				"summary": "Update a webhook",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"delete": {
				"tags": [
					"webhooks"
				],
				"summary": "Delete a webhook",
				"produces": [
					"application/json"
				],
				"responses": {
					"204": {
						"description": "No Content"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/webhooks/{id}/logs": {
			"get": {
				"tags": [
					"webhooks"
				],
				"summary": "Delivery log",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/audit-logs": {
			"get": {
				"tags": [
					"audit"
				],
				"summary": "List audit logs",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/reminders/run": {
			"post": {
				"tags": [
					"reminders"
				],
				"summary": "Run the reminder job immediately",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/reminders/runs": {
			"get": {
				"tags": [
					"reminders"
				],
				"summary": "Recent reminder runs",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
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
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Letters API",
	Description:      "Document signing workflow: templates, drafts, signatures, revisions and verifiable certificates.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
