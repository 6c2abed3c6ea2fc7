package util

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Validate runs the struct tag validations of v.
func Validate(v any) error {
	return validate.Struct(v)
}

// SendJSON marshals data and writes it to the websocket connection as a single text message.
func SendJSON(conn *websocket.Conn, data interface{}) error {
	msg, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("error writing message: %w", err)
	}
	return nil
}

// LoadConfig reads a YAML file and unmarshals it into a struct of type T.
// The result is validated against its `validate` struct tags.
func LoadConfig[T any](filepath string) (*T, error) {
	// 1. Read the file
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// 2. Initialize an empty instance of T
	var config T

	// 3. Unmarshal the YAML data into the struct
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	// 4. Validate
	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}

	return &config, nil
}
