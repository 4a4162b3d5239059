//go:build integration

package integration

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openconfig/calicotest/buildmeta"
	"github.com/openconfig/calicotest/calico"
	"github.com/openconfig/calicotest/harness"
	"github.com/openconfig/calicotest/image"
	"github.com/openconfig/calicotest/inspect"
	"github.com/openconfig/calicotest/workload"
)

func versionOr(v, def string) string {
	if s := os.Getenv(v); s != "" {
		return s
	}
	return def
}

// newInstance returns a fresh cluster.  CALICOTEST_KUBECONFIG selects an
// existing cluster instead of a kind cluster, and the operator release is
// uninstalled from it when the spec ends.
func newInstance(ctx SpecContext) harness.Instance {
	cfg := harness.Config{Type: harness.TypeKind, Kind: harness.Kind{Wait: 5 * time.Minute}}
	if kc := os.Getenv("CALICOTEST_KUBECONFIG"); kc != "" {
		cfg = harness.Config{Type: harness.TypeExternal, Kubecfg: kc}
	}
	inst, err := harness.New(ctx, cfg)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() {
		Expect(inst.Close()).To(Succeed())
	})
	if cfg.Type == harness.TypeExternal {
		DeferCleanup(func() {
			Expect(calico.Uninstall(inst)).To(Succeed())
		})
	}
	return inst
}

var _ = Describe("Calico installation", func() {
	calicoVersion := versionOr("CALICO_VERSION", calico.DefaultCalicoVersion)
	operatorVersion := versionOr("OPERATOR_VERSION", calico.DefaultOperatorVersion)
	resolver := buildmeta.New(buildmeta.EnvSource{})

	var platform image.Platform
	BeforeEach(func() {
		var err error
		platform, err = image.HostPlatform()
		Expect(err).NotTo(HaveOccurred())
	})

	It("installs the custom images through the operator", func(ctx SpecContext) {
		inst := newInstance(ctx)
		s := calico.CustomInstallation(calicoVersion, operatorVersion, platform)
		Expect(s.Run(ctx, inst, resolver, inspect.DefaultRegistry, workload.NewKubectlChecker(inst))).To(Succeed())
	}, SpecTimeout(30*time.Minute))

	It("brings up the operator of a deferred installation", func(ctx SpecContext) {
		inst := newInstance(ctx)
		s := calico.DeferredInstallation(calicoVersion, operatorVersion, platform)
		Expect(s.Run(ctx, inst, resolver, inspect.DefaultRegistry, workload.NewKubectlChecker(inst))).To(Succeed())
	}, SpecTimeout(15*time.Minute))
})
