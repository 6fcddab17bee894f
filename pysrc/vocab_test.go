package pysrc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuotedNames(t *testing.T) {
	assert.Equal(t, []string{"Service", "Widget"},
		QuotedNames(`Dict[str, "Service"] | Optional['Widget']`))
	assert.Empty(t, QuotedNames("List[int]"))
}

func TestCapWords(t *testing.T) {
	names := CapWords("Union[Service, Dict[str, Widget]]")
	assert.Equal(t, []string{"Service", "Widget"}, names,
		"typing constructs are filtered out")
}

func TestTypingMatches(t *testing.T) {
	assert.Equal(t, []string{"Union", "Dict", "Any"},
		TypingMatches("Union[Service, Dict[str, Any]]"))
	assert.Empty(t, TypingMatches("TypeVariable"), "whole words only")
}

func TestIsDunder(t *testing.T) {
	assert.True(t, IsDunder("__init__"))
	assert.True(t, IsDunder("__repr__"))
	assert.False(t, IsDunder("__private"))
	assert.False(t, IsDunder("_single_"))
	assert.False(t, IsDunder("____"))
}

func TestIsDeniedAttr(t *testing.T) {
	assert.True(t, IsDeniedAttr("__dict__"))
	assert.True(t, IsDeniedAttr("_abc_impl"))
	assert.False(t, IsDeniedAttr("__init__"))
	assert.False(t, IsDeniedAttr("value"))
}

func TestIsCapWord(t *testing.T) {
	assert.True(t, IsCapWord("Service"))
	assert.True(t, IsCapWord("HTTPClient2"))
	assert.False(t, IsCapWord("service"))
	assert.False(t, IsCapWord("_Service"))
	assert.False(t, IsCapWord("Ser vice"))
	assert.False(t, IsCapWord(""))
}

func TestVocabularyDisjointness(t *testing.T) {
	for name := range VoidMethods {
		assert.False(t, IsDeniedAttr(name), "%s must survive the deny-list", name)
	}
	for name := range DunderAllowed {
		assert.False(t, IsDeniedAttr(name), "%s must survive the deny-list", name)
	}
	for name := range SafeModules {
		assert.True(t, BuiltinModules[name], "safe module %s should be a known builtin module", name)
	}
}
