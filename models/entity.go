package models

import (
	"fmt"

	"github.com/banquet-labs/banquet/lib/typing"
)

const (
	// DummyEntityName is the placeholder entity backing entityless feature views.
	// It is appended on apply and hidden from list/get results.
	DummyEntityName = "__dummy"
	DummyEntityKey  = "__dummy_id"
	DummyEntityVal  = ""
)

type Entity struct {
	Name        string            `yaml:"name" json:"name"`
	JoinKey     string            `yaml:"joinKey" json:"joinKey"`
	ValueType   typing.ValueType  `yaml:"valueType" json:"valueType"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Tags        map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

func DummyEntity() Entity {
	return Entity{
		Name:      DummyEntityName,
		JoinKey:   DummyEntityKey,
		ValueType: typing.String,
	}
}

func (e Entity) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("entity name is empty")
	}

	if e.JoinKey == "" {
		return fmt.Errorf("entity %q has no join key", e.Name)
	}

	if e.ValueType != typing.Invalid && !e.ValueType.Valid() {
		return fmt.Errorf("entity %q has an invalid value type: %q", e.Name, e.ValueType)
	}

	return nil
}
