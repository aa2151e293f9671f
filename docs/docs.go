// Package docs registers the swagger document served under /swagger.
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
        "/healthz": {
            "get": {"tags": ["系统"], "summary": "健康检查", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/stats": {
            "get": {"tags": ["系统"], "summary": "运行统计", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/timelines": {
            "get": {"tags": ["时间线"], "summary": "时间线列表", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/timelines/{name}/rows": {
            "get": {
                "tags": ["时间线"],
                "summary": "读取时间线行",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "enum": ["home", "public", "federated"], "description": "时间线名称", "name": "name", "in": "path", "required": true},
                    {"type": "integer", "default": 0, "description": "起始行", "name": "offset", "in": "query"},
                    {"type": "integer", "default": 20, "description": "行数", "name": "limit", "in": "query"},
                    {"type": "string", "description": "逗号分隔的角色名", "name": "roles", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}
            }
        },
        "/api/v1/timelines/{name}/fetch-more": {
            "post": {
                "tags": ["时间线"],
                "summary": "加载更多",
                "parameters": [{"type": "string", "description": "时间线名称", "name": "name", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}
            }
        },
        "/api/v1/timelines/{name}/refresh": {
            "post": {
                "tags": ["时间线"],
                "summary": "刷新时间线",
                "parameters": [{"type": "string", "description": "时间线名称", "name": "name", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/timelines/{name}/rows/{row}/thread": {
            "get": {
                "tags": ["时间线"],
                "summary": "会话详情",
                "parameters": [
                    {"type": "string", "description": "时间线名称", "name": "name", "in": "path", "required": true},
                    {"type": "integer", "description": "行号", "name": "row", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/api/v1/timelines/{name}/rows/{row}/{action}": {
            "post": {
                "tags": ["时间线"],
                "summary": "行操作",
                "parameters": [
                    {"type": "string", "description": "时间线名称", "name": "name", "in": "path", "required": true},
                    {"type": "integer", "description": "行号", "name": "row", "in": "path", "required": true},
                    {"type": "string", "enum": ["favorite", "repeat", "visibility", "reply", "menu"], "description": "操作", "name": "action", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "fedtimeline API",
	Description:      "Headless view over federated timelines.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
