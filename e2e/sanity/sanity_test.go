//go:build sanity

package sanity

import (
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openconfig/calicotest/buildmeta"
	"github.com/openconfig/calicotest/calico"
	"github.com/openconfig/calicotest/image"
	"github.com/openconfig/calicotest/inspect"
)

// versionOr returns the environment variable v, def if unset.
func versionOr(v, def string) string {
	if s := os.Getenv(v); s != "" {
		return s
	}
	return def
}

var _ = Describe("Calico image sanity", func() {
	var (
		platform image.Platform
		runner   *inspect.DockerRunner
		resolver *buildmeta.Resolver
	)
	calicoVersion := versionOr("CALICO_VERSION", calico.DefaultCalicoVersion)
	operatorVersion := versionOr("OPERATOR_VERSION", calico.DefaultOperatorVersion)

	BeforeEach(func() {
		var err error
		platform, err = image.HostPlatform()
		Expect(err).NotTo(HaveOccurred())
		runner, err = inspect.NewDockerRunner(platform)
		Expect(err).NotTo(HaveOccurred())
		resolver = buildmeta.New(buildmeta.EnvSource{})
	})

	for _, check := range calico.SanityChecks {
		check := check
		version := check.Version(calicoVersion, operatorVersion)
		It(check.Component+" "+version, func(ctx SpecContext) {
			By("checking " + check.Component + " " + version)
			Expect(calico.RunSanity(ctx, resolver, runner, inspect.DefaultRegistry, check, version, platform)).To(Succeed())
		})
	}
})
