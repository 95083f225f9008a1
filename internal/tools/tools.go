// Package tools exposes the knowledge base and the crawler to the model as callable functions.
package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
	"google.golang.org/genai"
)

// Tool is a function the model can call.
type Tool interface {
	Declaration() *genai.FunctionDeclaration
	Call(ctx context.Context, args map[string]any) (string, error)
}

// Info is a short description of a registered tool.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry holds tools by name and keeps their registration order.
type Registry struct {
	tools  []Tool
	byName map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		r.Register(tool)
	}
	return r
}

// Register adds tool, replacing a previously registered tool with the same name.
func (r *Registry) Register(tool Tool) {
	name := tool.Declaration().Name
	if _, ok := r.byName[name]; ok {
		for i, existing := range r.tools {
			if existing.Declaration().Name == name {
				r.tools[i] = tool
			}
		}
	} else {
		r.tools = append(r.tools, tool)
	}
	r.byName[name] = tool
}

// GenaiTools returns the declarations in the form expected by GenerateContentConfig.
func (r *Registry) GenaiTools() []*genai.Tool {
	if len(r.tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(r.tools))
	for _, tool := range r.tools {
		decls = append(decls, tool.Declaration())
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// Call runs the named tool.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	tool, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	return tool.Call(ctx, args)
}

func (r *Registry) Describe() []Info {
	infos := make([]Info, 0, len(r.tools))
	for _, tool := range r.tools {
		decl := tool.Declaration()
		infos = append(infos, Info{Name: decl.Name, Description: decl.Description})
	}
	return infos
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// decodeArgs converts loosely typed model arguments into target.
func decodeArgs(args map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func stringProperty(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

func integerProperty(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeInteger, Description: description}
}
