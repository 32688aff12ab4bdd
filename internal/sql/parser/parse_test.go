package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RequireSemicolon(t *testing.T) {
	_, err := Parse("SELECT * FROM t")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing ';'")
}

func TestParse_LoadBasic(t *testing.T) {
	stmt, err := Parse("LOAD t FROM 'data.del';")
	require.NoError(t, err)

	s, ok := stmt.(*LoadStmt)
	require.True(t, ok, "want *LoadStmt, got %T", stmt)
	assert.Equal(t, "t", s.Table)
	assert.Equal(t, "data.del", s.File)
	assert.False(t, s.WithIndex)
}

func TestParse_LoadWithIndex(t *testing.T) {
	stmt, err := Parse("LOAD t FROM 'data.del' WITH INDEX;")
	require.NoError(t, err)

	s, ok := stmt.(*LoadStmt)
	require.True(t, ok, "want *LoadStmt, got %T", stmt)
	assert.True(t, s.WithIndex)
}

func TestParse_LoadMissingFrom(t *testing.T) {
	_, err := Parse("LOAD t 'data.del';")
	require.Error(t, err)
}

func TestParse_LoadUnquotedFile(t *testing.T) {
	_, err := Parse("LOAD t FROM data.del;")
	require.Error(t, err)
}

func TestParse_SelectStar(t *testing.T) {
	stmt, err := Parse("SELECT * FROM t;")
	require.NoError(t, err)

	s, ok := stmt.(*SelectStmt)
	require.True(t, ok, "want *SelectStmt, got %T", stmt)
	assert.Equal(t, "t", s.Table)
	assert.Equal(t, ProjectBoth, s.Projection)
	assert.Nil(t, s.Conds)
}

func TestParse_SelectKeyValueCount(t *testing.T) {
	for in, want := range map[string]Projection{
		"SELECT key FROM t;":      ProjectKey,
		"SELECT value FROM t;":    ProjectValue,
		"SELECT count(*) FROM t;": ProjectCount,
	} {
		stmt, err := Parse(in)
		require.NoError(t, err, in)
		s := stmt.(*SelectStmt)
		assert.Equal(t, want, s.Projection, in)
	}
}

func TestParse_SelectInvalidProjection(t *testing.T) {
	_, err := Parse("SELECT bogus FROM t;")
	require.Error(t, err)
}

func TestParse_SelectWhereSingleCond(t *testing.T) {
	stmt, err := Parse("SELECT key FROM t WHERE key = 10;")
	require.NoError(t, err)

	s := stmt.(*SelectStmt)
	require.Len(t, s.Conds, 1)
	assert.Equal(t, AttrKey, s.Conds[0].Attr)
	assert.Equal(t, EQ, s.Conds[0].Comp)
	assert.EqualValues(t, 10, s.Conds[0].KeyLit)
}

func TestParse_SelectWhereAndedConds(t *testing.T) {
	stmt, err := Parse("SELECT * FROM t WHERE key > 5 AND key <= 20 AND value <> 'x';")
	require.NoError(t, err)

	s := stmt.(*SelectStmt)
	require.Len(t, s.Conds, 3)
	assert.Equal(t, GT, s.Conds[0].Comp)
	assert.EqualValues(t, 5, s.Conds[0].KeyLit)
	assert.Equal(t, LE, s.Conds[1].Comp)
	assert.EqualValues(t, 20, s.Conds[1].KeyLit)
	assert.Equal(t, AttrValue, s.Conds[2].Attr)
	assert.Equal(t, NE, s.Conds[2].Comp)
	assert.Equal(t, "x", s.Conds[2].ValLit)
}

func TestParse_SelectWhereComparators(t *testing.T) {
	cases := map[string]Comp{
		"key = 1":  EQ,
		"key <> 1": NE,
		"key < 1":  LT,
		"key <= 1": LE,
		"key > 1":  GT,
		"key >= 1": GE,
	}
	for expr, want := range cases {
		stmt, err := Parse("SELECT key FROM t WHERE " + expr + ";")
		require.NoError(t, err, expr)
		s := stmt.(*SelectStmt)
		require.Len(t, s.Conds, 1)
		assert.Equal(t, want, s.Conds[0].Comp, expr)
	}
}

func TestParse_SelectWhereBadAttr(t *testing.T) {
	_, err := Parse("SELECT * FROM t WHERE bogus = 1;")
	require.Error(t, err)
}

func TestParse_Unsupported(t *testing.T) {
	_, err := Parse("DELETE FROM t;")
	require.Error(t, err)
}

func TestParseLoadLine(t *testing.T) {
	cases := []struct {
		in        string
		wantKey   int32
		wantValue string
		wantErr   bool
	}{
		{"1, 'abc'", 1, "abc", false},
		{"2, \"def\"", 2, "def", false},
		{"3, bare value", 3, "bare value", false},
		{"  4  ,   'spaced'  ", 4, "spaced", false},
		{"5,", 5, "", false},
		{"no key here", 0, "", true},
		{"6 no comma", 0, "", true},
		{"7, 'unterminated", 0, "", true},
	}
	for _, tc := range cases {
		key, value, err := ParseLoadLine(tc.in)
		if tc.wantErr {
			require.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.wantKey, key, tc.in)
		assert.Equal(t, tc.wantValue, value, tc.in)
	}
}

func TestSplitKeyword(t *testing.T) {
	left, right := splitKeyword("t WHERE key=1", "WHERE")
	assert.Equal(t, "t", left)
	assert.Equal(t, "key=1", right)

	left, right = splitKeyword("t", "WHERE")
	assert.Equal(t, "t", left)
	assert.Empty(t, right)
}
