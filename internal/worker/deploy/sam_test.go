package deploy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const twoFunctionTemplate = `
Transform: AWS::Serverless-2016-10-31
Resources:
  F1:
    Type: AWS::Serverless::Function
    Properties:
      CodeUri: src/f1
      Handler: index.handler
  F2:
    Type: AWS::Serverless::Function
    Properties:
      CodeUri: src/f2
      Handler: index.handler
  Table:
    Type: AWS::DynamoDB::Table
`

func TestParseFunctionsFindsBothLocalCodeURIs(t *testing.T) {
	refs, _, err := ParseFunctions(twoFunctionTemplate)
	require.NoError(t, err)
	require.Len(t, refs, 2)

	byID := map[string]string{}
	for _, r := range refs {
		byID[r.LogicalID] = r.CodeURI
	}
	require.Equal(t, "src/f1", byID["F1"])
	require.Equal(t, "src/f2", byID["F2"])
}

func TestRewriteCodeURIsSubstitutesBlobURIs(t *testing.T) {
	_, root, err := ParseFunctions(twoFunctionTemplate)
	require.NoError(t, err)

	rewritten, err := RewriteCodeURIs(root, map[string]string{
		"F1": "s3://bucket/deployments/s1/functions/F1.zip",
		"F2": "s3://bucket/deployments/s1/functions/F2.zip",
	})
	require.NoError(t, err)

	refs, _, err := ParseFunctions(rewritten)
	require.NoError(t, err)
	for _, r := range refs {
		require.Contains(t, r.CodeURI, "s3://bucket/deployments/s1/functions/")
	}
}

func TestRewriteCodeURIsLeavesUnmatchedLogicalIDsUnchanged(t *testing.T) {
	_, root, err := ParseFunctions(twoFunctionTemplate)
	require.NoError(t, err)

	rewritten, err := RewriteCodeURIs(root, map[string]string{"F1": "s3://bucket/f1.zip"})
	require.NoError(t, err)

	refs, _, err := ParseFunctions(rewritten)
	require.NoError(t, err)
	byID := map[string]string{}
	for _, r := range refs {
		byID[r.LogicalID] = r.CodeURI
	}
	require.Equal(t, "s3://bucket/f1.zip", byID["F1"])
	require.Equal(t, "src/f2", byID["F2"])
}
