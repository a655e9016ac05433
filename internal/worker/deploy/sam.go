package deploy

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

// FunctionRef is one SAM/CloudFormation function resource's local code
// reference, located by ParseFunctions.
type FunctionRef struct {
	LogicalID string
	CodeURI   string
}

// serverlessFunctionTypes are the resource Types whose Properties.CodeUri
// names a local path to package, per spec.md §4.3's "locate each function
// declaration's local code reference".
var serverlessFunctionTypes = map[string]bool{
	"AWS::Serverless::Function": true,
	"AWS::Lambda::Function":     true,
}

// ParseFunctions parses templateBody as YAML and returns the function
// resources with a scalar (local-path) CodeUri, plus the parsed document
// node for later in-place rewriting.
func ParseFunctions(templateBody string) ([]FunctionRef, *yaml.Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(templateBody), &root); err != nil {
		return nil, nil, err
	}
	if len(root.Content) == 0 {
		return nil, &root, nil
	}

	doc := root.Content[0]
	resources := mapValue(doc, "Resources")
	if resources == nil {
		return nil, &root, nil
	}

	var refs []FunctionRef
	for i := 0; i+1 < len(resources.Content); i += 2 {
		logicalID := resources.Content[i].Value
		resNode := resources.Content[i+1]

		typeNode := mapValue(resNode, "Type")
		if typeNode == nil || !serverlessFunctionTypes[typeNode.Value] {
			continue
		}
		props := mapValue(resNode, "Properties")
		if props == nil {
			continue
		}
		codeURI := mapValue(props, "CodeUri")
		if codeURI == nil || codeURI.Kind != yaml.ScalarNode {
			continue
		}
		refs = append(refs, FunctionRef{LogicalID: logicalID, CodeURI: codeURI.Value})
	}
	return refs, &root, nil
}

// RewriteCodeURIs substitutes each named logical id's CodeUri scalar with
// its blob URI from replacements and re-serializes the document, per
// spec.md §4.3's "rewrite the template in-memory substituting each local
// reference with the stored blob's URI".
func RewriteCodeURIs(root *yaml.Node, replacements map[string]string) (string, error) {
	if len(root.Content) == 0 {
		return "", nil
	}
	doc := root.Content[0]
	resources := mapValue(doc, "Resources")
	if resources != nil {
		for i := 0; i+1 < len(resources.Content); i += 2 {
			logicalID := resources.Content[i].Value
			replacement, ok := replacements[logicalID]
			if !ok {
				continue
			}
			resNode := resources.Content[i+1]
			props := mapValue(resNode, "Properties")
			if props == nil {
				continue
			}
			codeURI := mapValue(props, "CodeUri")
			if codeURI == nil {
				continue
			}
			codeURI.Value = replacement
			codeURI.Tag = "!!str"
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func mapValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
