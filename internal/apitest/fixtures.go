// Package apitest holds API documents and helpers shared by package tests.
package apitest

import (
	"context"
	"testing"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
)

// PetStore2 is a Swagger 2.0 document exercising every pipeline stage.
const PetStore2 = `
swagger: "2.0"
info:
  title: Swagger Petstore
  version: 1.0.0
basePath: /api
consumes:
  - application/json
produces:
  - application/json
securityDefinitions:
  petBasic:
    type: basic
  petHeader:
    type: apiKey
    in: header
    name: X-API-KEY
  petQuery:
    type: apiKey
    in: query
    name: api_key
  petOAuth:
    type: oauth2
    flow: implicit
    authorizationUrl: https://example.com/auth
    scopes:
      read: read pets
definitions:
  pet:
    type: object
    required:
      - Name
      - Type
    properties:
      Name:
        type: string
      Type:
        type: string
        enum: [cat, dog, bird]
      Age:
        type: integer
        minimum: 0
paths:
  /pets:
    get:
      parameters:
        - name: Type
          in: query
          type: string
        - name: Age
          in: query
          type: integer
        - name: Tags
          in: query
          type: array
          items:
            type: string
      responses:
        200:
          description: all pets
          schema:
            type: array
            items:
              $ref: "#/definitions/pet"
    post:
      parameters:
        - name: PetData
          in: body
          required: true
          schema:
            $ref: "#/definitions/pet"
      responses:
        201:
          description: pet created
          headers:
            Location:
              type: string
          schema:
            $ref: "#/definitions/pet"
    delete:
      responses:
        200:
          description: deleted pets
          schema:
            type: array
            items:
              $ref: "#/definitions/pet"
  /pets/{PetName}:
    parameters:
      - name: PetName
        in: path
        required: true
        type: string
    get:
      responses:
        200:
          description: one pet
          headers:
            Last-Modified:
              type: string
          schema:
            $ref: "#/definitions/pet"
    put:
      parameters:
        - name: PetData
          in: body
          required: true
          schema:
            $ref: "#/definitions/pet"
      responses:
        200:
          description: pet saved
          schema:
            $ref: "#/definitions/pet"
    patch:
      parameters:
        - name: PetData
          in: body
          required: true
          schema:
            $ref: "#/definitions/pet"
      responses:
        200:
          description: pet updated
          schema:
            $ref: "#/definitions/pet"
    delete:
      responses:
        204:
          description: pet deleted
  /pets/mine:
    get:
      responses:
        200:
          description: my pet
          schema:
            $ref: "#/definitions/pet"
    head:
      responses:
        200:
          description: my pet
          schema:
            $ref: "#/definitions/pet"
  /pets/{PetName}/photos/{ID}:
    parameters:
      - name: PetName
        in: path
        required: true
        type: string
      - name: ID
        in: path
        required: true
        type: integer
    get:
      produces:
        - image/png
      responses:
        200:
          description: a photo
          schema:
            type: file
  /secure:
    get:
      security:
        - petBasic: []
        - petHeader: []
      responses:
        200:
          description: ok
  /secure/both:
    get:
      security:
        - petBasic: []
          petQuery: []
      responses:
        200:
          description: ok
  /secure/oauth:
    get:
      security:
        - petOAuth: [read]
      responses:
        200:
          description: ok
  /wrapped:
    get:
      responses:
        200:
          description: wrapped pet
          schema:
            type: object
            properties:
              code:
                type: integer
              message:
                type: string
              result:
                $ref: "#/definitions/pet"
    post:
      parameters:
        - name: PetData
          in: body
          schema:
            $ref: "#/definitions/pet"
      responses:
        default:
          description: wrapped pets
          schema:
            type: object
            properties:
              code:
                type: integer
              results:
                type: array
                items:
                  $ref: "#/definitions/pet"
  /uploads:
    post:
      consumes:
        - multipart/form-data
      parameters:
        - name: Title
          in: formData
          type: string
        - name: Content-Length
          in: header
          required: true
          type: integer
      responses:
        201:
          description: uploaded
          headers:
            Set-Cookie:
              type: string
            X-Upload-Count:
              type: integer
              default: 1
`

// PetStore3 is an OpenAPI 3 document with styled parameters and a
// server base path.
const PetStore3 = `
openapi: 3.0.3
info:
  title: Petstore v3
  version: 2.0.0
servers:
  - url: http://localhost/v3
security:
  - bearerAuth: []
components:
  securitySchemes:
    bearerAuth:
      type: http
      scheme: bearer
    basicAuth:
      type: http
      scheme: basic
  schemas:
    Pet:
      type: object
      properties:
        id:
          type: integer
        name:
          type: string
paths:
  /pets:
    get:
      security: []
      parameters:
        - name: ids
          in: query
          style: pipeDelimited
          explode: false
          schema:
            type: array
            items:
              type: integer
        - name: filter
          in: query
          style: deepObject
          explode: true
          schema:
            type: object
            properties:
              name:
                type: string
              age:
                type: integer
        - name: since
          in: header
          schema:
            type: string
            format: date
      responses:
        "200":
          description: pets
          content:
            application/json:
              schema:
                type: array
                items:
                  $ref: "#/components/schemas/Pet"
    post:
      security:
        - basicAuth: []
      requestBody:
        required: true
        content:
          application/json:
            schema:
              $ref: "#/components/schemas/Pet"
      responses:
        "201":
          description: created
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Pet"
  /pets/{id}:
    get:
      parameters:
        - name: id
          in: path
          required: true
          style: label
          schema:
            type: integer
      responses:
        "200":
          description: a pet
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Pet"
              example:
                id: 1
                name: Fido
        "404":
          description: missing
`

// Load loads an API document from YAML text or fails the test.
func Load(t testing.TB, text string) *apidoc.Document {
	t.Helper()
	doc, err := apidoc.Load(context.Background(), []byte(text))
	if err != nil {
		t.Fatalf("load API document: %v", err)
	}
	return doc
}

// Routing is a fixed routing configuration for tests.
type Routing struct {
	Case  bool
	Slash bool
}

func (r Routing) CaseSensitive() bool { return r.Case }
func (r Routing) Strict() bool        { return r.Slash }
