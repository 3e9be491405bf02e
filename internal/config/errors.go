package config

import coreerrors "github.com/Pharbi/arachnid/internal/errors"

func errConfig(message string) error {
	return coreerrors.NewConfigurationInvalid(message)
}
