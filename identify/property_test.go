package identify

import (
	"encoding/base64"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDecodeBase64Property verifies the base64-normalize idempotence
// invariant: decoding a standard-encoded payload always recovers the
// original bytes, regardless of content.
func TestDecodeBase64Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("StdEncoding round-trips through decodeBase64", prop.ForAll(
		func(data []byte) bool {
			encoded := base64.StdEncoding.EncodeToString(data)
			decoded, err := decodeBase64(encoded)
			if err != nil {
				return false
			}
			return string(decoded) == string(data)
		},
		gen.SliceOf(gen.UInt8Range(0, 255)),
	))

	properties.Property("RawStdEncoding round-trips through decodeBase64", prop.ForAll(
		func(data []byte) bool {
			encoded := base64.RawStdEncoding.EncodeToString(data)
			decoded, err := decodeBase64(encoded)
			if err != nil {
				return false
			}
			return string(decoded) == string(data)
		},
		gen.SliceOf(gen.UInt8Range(0, 255)),
	))

	properties.TestingRun(t)
}

// TestValidateImagesCountBoundaryProperty verifies the exactly-5-accepted/
// 6-rejected image count boundary holds for any well-sized image payload,
// not just a hand-picked example.
func TestValidateImagesCountBoundaryProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	small := base64.StdEncoding.EncodeToString([]byte("tiny-image-payload"))

	properties.Property("1..5 images always pass count validation", prop.ForAll(
		func(n int) bool {
			images := make([]string, n)
			for i := range images {
				images[i] = small
			}
			return validateImages(images) == nil
		},
		gen.IntRange(1, MaxImages),
	))

	properties.Property("more than 5 images always fail count validation", prop.ForAll(
		func(extra int) bool {
			images := make([]string, MaxImages+extra)
			for i := range images {
				images[i] = small
			}
			err := validateImages(images)
			return err != nil && err.Code == "VALIDATION_ERROR"
		},
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}
