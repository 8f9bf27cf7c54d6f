package chunking

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestChunking(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Chunking Suite")
}
