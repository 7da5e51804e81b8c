package initializers

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
)

// LoadEnv loads variables from a .env file when one is present. A missing file
// is not an error; deployments usually inject the environment directly.
func LoadEnv(files ...string) error {
	log.Println("Loading env file")
	if err := godotenv.Load(files...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Println("No env file found, using process environment")
			return nil
		}
		return err
	}
	log.Println("Env loaded successfully")
	return nil
}
