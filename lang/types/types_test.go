package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	for k := Kind(0); k < maxKind; k++ {
		assert.NotEmpty(t, kindNames[k], "missing name of kind %d", k)
	}
	assert.Equal(t, "kind(?)", maxKind.String())
}

func TestTypeString(t *testing.T) {
	cases := []struct {
		typ  *Type
		want string
	}{
		{nil, "any"},
		{IntType, "int"},
		{NewFun(IntType, BoolType), "int -> bool"},
		{NewFun(IntType, NewFun(IntType, IntType)), "int -> int -> int"},
		{NewFun(NewFun(IntType, IntType), UnitType), "(int -> int) -> unit"},
		{NewFun(nil, nil), "any -> any"},
		{NewException("Failure"), "Failure"},
	}
	for _, c := range cases {
		t.Run(c.want, func(t *testing.T) {
			assert.Equal(t, c.want, c.typ.String())
		})
	}
}

func TestResult(t *testing.T) {
	fn := NewFun(IntType, NewFun(StringType, BoolType))
	assert.Equal(t, fn, fn.Result(0))
	assert.Equal(t, StringType, fn.Result(1).Arg)
	assert.Equal(t, BoolType, fn.Result(2))
	assert.Equal(t, AnyType, fn.Result(3))
	assert.Equal(t, AnyType, IntType.Result(1))
}

func TestStorage(t *testing.T) {
	assert.Equal(t, IntStorage, IntType.Storage())
	assert.Equal(t, BoolStorage, BoolType.Storage())
	assert.Equal(t, StrStorage, StringType.Storage())
	assert.Equal(t, FunStorage, NewFun(nil, nil).Storage())
	assert.Equal(t, ValueStorage, UnitType.Storage())
	assert.Equal(t, ValueStorage, (*Type)(nil).Storage())
}
