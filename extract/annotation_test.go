package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnnotation_Specials(t *testing.T) {
	assert.True(t, IsAny(ParseAnnotation("")))
	assert.True(t, IsAny(ParseAnnotation("Any")))
	assert.True(t, IsNone(ParseAnnotation("None")))
	assert.False(t, IsAny(ParseAnnotation("None")))
}

func TestParseAnnotation_Names(t *testing.T) {
	assert.Equal(t, Named{Name: "int"}, ParseAnnotation(" int "))
	assert.Equal(t, Named{Name: "User"}, ParseAnnotation("User"))
	assert.Equal(t, Dotted{Path: "models.User"}, ParseAnnotation("models.User"))
	assert.Equal(t, Dotted{Path: "app.models.User"}, ParseAnnotation("app.models.User"))
}

func TestParseAnnotation_QuotedForwardRefs(t *testing.T) {
	assert.Equal(t, Quoted{Text: "User"}, ParseAnnotation("'User'"))
	assert.Equal(t, Quoted{Text: "models.User"}, ParseAnnotation(`"models.User"`))
}

func TestParseAnnotation_Subscripts(t *testing.T) {
	got := ParseAnnotation("List[int]")
	require.IsType(t, Subscript{}, got)
	sub := got.(Subscript)
	assert.Equal(t, "List", sub.Origin)
	require.Len(t, sub.Args, 1)
	assert.Equal(t, Named{Name: "int"}, sub.Args[0])

	nested := ParseAnnotation("Dict[str, List[User]]")
	require.IsType(t, Subscript{}, nested)
	outer := nested.(Subscript)
	assert.Equal(t, "Dict", outer.Origin)
	require.Len(t, outer.Args, 2)
	assert.Equal(t, Named{Name: "str"}, outer.Args[0])
	assert.IsType(t, Subscript{}, outer.Args[1])
}

func TestParseAnnotation_UnionsNormalize(t *testing.T) {
	optional := ParseAnnotation("Optional[User]")
	require.IsType(t, Union{}, optional)
	members := optional.(Union).Members
	require.Len(t, members, 2)
	assert.Equal(t, Named{Name: "User"}, members[0])
	assert.True(t, IsNone(members[1]))

	pipe := ParseAnnotation("int | None")
	require.IsType(t, Union{}, pipe)
	pipeMembers := pipe.(Union).Members
	require.Len(t, pipeMembers, 2)
	assert.Equal(t, Named{Name: "int"}, pipeMembers[0])
	assert.True(t, IsNone(pipeMembers[1]))

	union := ParseAnnotation("Union[int, str, None]")
	require.IsType(t, Union{}, union)
	assert.Len(t, union.(Union).Members, 3)
}

func TestParseAnnotation_Degradation(t *testing.T) {
	// Bracketed expressions outside the grammar stay verbatim.
	assert.Equal(t, Complex{Raw: "Callable[[int], str]"}, ParseAnnotation("Callable[[int], str]"))
	assert.Equal(t, Complex{Raw: "Tuple[int, ...]"}, ParseAnnotation("Tuple[int, ...]"))
	// Literal and Annotated arguments are values, never parsed as types.
	assert.Equal(t, Complex{Raw: "Literal['a', 'b']"}, ParseAnnotation("Literal['a', 'b']"))
	// Anything else unparseable becomes a quoted forward reference.
	assert.Equal(t, Quoted{Text: "User if flag else Node"}, ParseAnnotation("User if flag else Node"))
}
