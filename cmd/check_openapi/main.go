package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const schemaRefPrefix = "#/components/schemas/"

type openAPIDoc struct {
	Paths      map[string]map[string]operation `yaml:"paths"`
	Components struct {
		Schemas map[string]schema `yaml:"schemas"`
	} `yaml:"components"`
}

type operation struct {
	Summary     string              `yaml:"summary"`
	RequestBody *body               `yaml:"requestBody"`
	Responses   map[string]response `yaml:"responses"`
}

type body struct {
	Content map[string]mediaType `yaml:"content"`
}

type response struct {
	Description string               `yaml:"description"`
	Content     map[string]mediaType `yaml:"content"`
}

type mediaType struct {
	Schema schema `yaml:"schema"`
}

type schema struct {
	Type       string            `yaml:"type"`
	Ref        string            `yaml:"$ref"`
	Properties map[string]schema `yaml:"properties"`
	Required   []string          `yaml:"required"`
	Items      *schema           `yaml:"items"`
}

var httpMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"patch": true, "head": true, "options": true,
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <storefront-openapi.yaml>\n", os.Args[0])
		os.Exit(2)
	}
	doc, err := loadDoc(os.Args[1])
	if err != nil {
		exitErr(err)
	}
	if err := checkDoc(doc); err != nil {
		exitErr(err)
	}
	fmt.Println("OpenAPI consistency check passed.")
}

func loadDoc(path string) (openAPIDoc, error) {
	var doc openAPIDoc
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func checkDoc(doc openAPIDoc) error {
	errResp, err := getSchema(doc, "ErrorResponse")
	if err != nil {
		return err
	}
	if err := validateErrorResponse(errResp); err != nil {
		return err
	}
	for _, name := range sortedKeys(doc.Components.Schemas) {
		if err := validateSchema(doc, "schema "+name, doc.Components.Schemas[name]); err != nil {
			return err
		}
	}
	if len(doc.Paths) == 0 {
		return errors.New("paths missing")
	}
	for _, path := range sortedKeys(doc.Paths) {
		if err := validatePath(doc, path, doc.Paths[path]); err != nil {
			return err
		}
	}
	return nil
}

func getSchema(doc openAPIDoc, name string) (schema, error) {
	if doc.Components.Schemas == nil {
		return schema{}, errors.New("components.schemas missing")
	}
	s, ok := doc.Components.Schemas[name]
	if !ok {
		return schema{}, fmt.Errorf("schema %q missing", name)
	}
	return s, nil
}

// validateErrorResponse pins the error envelope every failing route writes.
func validateErrorResponse(s schema) error {
	if s.Type != "object" {
		return errors.New("ErrorResponse must be object")
	}
	required := makeSet(s.Required)
	for _, field := range []string{"error", "retryable"} {
		if !required[field] {
			return fmt.Errorf("ErrorResponse.required must include %q", field)
		}
	}
	if prop, ok := s.Properties["error"]; !ok || prop.Type != "string" {
		return errors.New("ErrorResponse.error must be string")
	}
	if prop, ok := s.Properties["retryable"]; !ok || prop.Type != "boolean" {
		return errors.New("ErrorResponse.retryable must be boolean")
	}
	return nil
}

func validateSchema(doc openAPIDoc, scope string, s schema) error {
	if ref := strings.TrimSpace(s.Ref); ref != "" {
		return resolveRef(doc, scope, ref)
	}
	for _, field := range s.Required {
		if _, ok := s.Properties[field]; !ok {
			return fmt.Errorf("%s requires %q but does not define it", scope, field)
		}
	}
	if s.Type == "array" && s.Items == nil {
		return fmt.Errorf("%s is an array without items", scope)
	}
	if s.Items != nil {
		if err := validateSchema(doc, scope+".items", *s.Items); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(s.Properties) {
		if err := validateSchema(doc, scope+"."+name, s.Properties[name]); err != nil {
			return err
		}
	}
	return nil
}

func resolveRef(doc openAPIDoc, scope, ref string) error {
	name, ok := strings.CutPrefix(ref, schemaRefPrefix)
	if !ok {
		return fmt.Errorf("%s: unsupported $ref %q", scope, ref)
	}
	if _, ok := doc.Components.Schemas[name]; !ok {
		return fmt.Errorf("%s: $ref %q does not resolve", scope, ref)
	}
	return nil
}

func validatePath(doc openAPIDoc, path string, ops map[string]operation) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path %q must start with /", path)
	}
	if len(ops) == 0 {
		return fmt.Errorf("path %q has no operations", path)
	}
	for _, method := range sortedKeys(ops) {
		scope := strings.ToUpper(method) + " " + path
		if !httpMethods[method] {
			return fmt.Errorf("%s: unknown method", scope)
		}
		op := ops[method]
		if len(op.Responses) == 0 {
			return fmt.Errorf("%s: responses missing", scope)
		}
		if op.RequestBody != nil {
			for _, ct := range sortedKeys(op.RequestBody.Content) {
				if err := validateSchema(doc, scope+" request "+ct, op.RequestBody.Content[ct].Schema); err != nil {
					return err
				}
			}
		}
		for _, code := range sortedKeys(op.Responses) {
			resp := op.Responses[code]
			for _, ct := range sortedKeys(resp.Content) {
				s := resp.Content[ct].Schema
				rscope := scope + " " + code
				if err := validateSchema(doc, rscope, s); err != nil {
					return err
				}
				if isErrorStatus(code) && strings.TrimSpace(s.Ref) != schemaRefPrefix+"ErrorResponse" {
					return fmt.Errorf("%s must use ErrorResponse", rscope)
				}
			}
		}
	}
	return nil
}

func isErrorStatus(code string) bool {
	return strings.HasPrefix(code, "4") || strings.HasPrefix(code, "5")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func makeSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out[item] = true
	}
	return out
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
