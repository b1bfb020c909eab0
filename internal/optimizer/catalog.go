package optimizer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lakeops/lakeops/internal/workspace"
)

// The instance catalog is a static, hand-authored mapping from instance-type
// naming conventions to resource categories. Pattern order matters: the first
// category whose pattern matches as a prefix or substring wins.

type categoryPatterns struct {
	category NodeTypeCategory
	patterns []string
}

var awsInstancePatterns = []categoryPatterns{
	{CategoryMemoryOptimized, []string{"r5", "r6i", "r6g", "r7i", "r7g", "x1", "x2"}},
	{CategoryComputeOptimized, []string{"c5", "c6i", "c6g", "c7i", "c7g"}},
	{CategoryGeneralPurpose, []string{"m5", "m6i", "m6g", "m7i", "m7g"}},
	{CategoryGPU, []string{"p3", "p4", "p5", "g4", "g5", "g6"}},
	{CategoryStorageOptimized, []string{"i3", "i4i", "d2", "d3", "h1"}},
}

var azureInstancePatterns = []categoryPatterns{
	{CategoryMemoryOptimized, []string{"Standard_E", "Standard_M", "Standard_D.*s_v"}},
	{CategoryComputeOptimized, []string{"Standard_F"}},
	{CategoryGeneralPurpose, []string{"Standard_D", "Standard_A"}},
	{CategoryGPU, []string{"Standard_NC", "Standard_ND", "Standard_NV"}},
	{CategoryStorageOptimized, []string{"Standard_L"}},
}

var gcpInstancePatterns = []categoryPatterns{
	{CategoryMemoryOptimized, []string{"n2-highmem", "n2d-highmem", "m1-", "m2-", "m3-"}},
	{CategoryComputeOptimized, []string{"c2-", "c2d-", "c3-", "h3-"}},
	{CategoryGeneralPurpose, []string{"n1-", "n2-standard", "n2d-standard", "e2-"}},
	{CategoryGPU, []string{"a2-", "g2-"}},
	{CategoryStorageOptimized, []string{"n2-"}},
}

// Rough vCPU estimate per AWS size token.
var awsSizeVCPUs = map[string]int{
	"large": 2, "xlarge": 4, "2xlarge": 8, "4xlarge": 16,
	"8xlarge": 32, "12xlarge": 48, "16xlarge": 64,
	"24xlarge": 96, "metal": 192,
}

var (
	awsGenerationRe = regexp.MustCompile(`[a-z](\d+[a-z]?)`)
	awsSizeRe       = regexp.MustCompile(`\.(\d*x?large|metal)`)
	azureDigitsRe   = regexp.MustCompile(`(\d+)`)
	azureVersionRe  = regexp.MustCompile(`_v(\d+)`)
	azureNCGPURe    = regexp.MustCompile(`NC(\d+)`)
	gcpVCPURe       = regexp.MustCompile(`-(\d+)$`)
	gcpHighGPURe    = regexp.MustCompile(`highgpu-(\d+)`)
)

// ParseNodeType extracts what it can from an instance-type name: resource
// category, and where the naming convention encodes them, vCPU count,
// generation, size token, and GPU count. Unrecognized or empty names degrade
// to the unknown category; this never fails.
func ParseNodeType(nodeType string, cloud workspace.CloudProvider) NodeTypeSpec {
	if nodeType == "" {
		return NodeTypeSpec{InstanceType: "unknown", Category: CategoryUnknown}
	}

	lower := strings.ToLower(nodeType)
	spec := NodeTypeSpec{InstanceType: nodeType, Category: CategoryUnknown}

	var patterns []categoryPatterns
	switch cloud {
	case workspace.CloudAzure:
		patterns = azureInstancePatterns
	case workspace.CloudGCP:
		patterns = gcpInstancePatterns
	default:
		// AWS naming is the most common; use it for unknown clouds too.
		patterns = awsInstancePatterns
	}

	for _, cp := range patterns {
		for _, p := range cp.patterns {
			p = strings.ToLower(p)
			if strings.HasPrefix(lower, p) || strings.Contains(lower, p) {
				spec.Category = cp.category
				break
			}
		}
		if spec.Category != CategoryUnknown {
			break
		}
	}

	switch cloud {
	case workspace.CloudAzure:
		if m := azureDigitsRe.FindStringSubmatch(nodeType); m != nil {
			v, _ := strconv.Atoi(m[1])
			spec.VCPUs = &v
		}
		if m := azureVersionRe.FindStringSubmatch(nodeType); m != nil {
			spec.Generation = "v" + m[1]
		}
		if spec.Category == CategoryGPU {
			// NC6 = 1 GPU, NC24 = 4 GPUs.
			if m := azureNCGPURe.FindStringSubmatch(nodeType); m != nil {
				n, _ := strconv.Atoi(m[1])
				g := n / 6
				spec.GPUCount = &g
			}
		}
	case workspace.CloudGCP:
		if m := gcpVCPURe.FindStringSubmatch(nodeType); m != nil {
			v, _ := strconv.Atoi(m[1])
			spec.VCPUs = &v
		}
		if spec.Category == CategoryGPU {
			if m := gcpHighGPURe.FindStringSubmatch(lower); m != nil {
				g, _ := strconv.Atoi(m[1])
				spec.GPUCount = &g
			}
		}
	default:
		if m := awsGenerationRe.FindStringSubmatch(lower); m != nil {
			spec.Generation = m[1]
		}
		if m := awsSizeRe.FindStringSubmatch(lower); m != nil {
			spec.Size = m[1]
			if v, ok := awsSizeVCPUs[spec.Size]; ok {
				vcpus := v
				spec.VCPUs = &vcpus
			}
		}
		if spec.Category == CategoryGPU {
			spec.GPUCount = awsGPUCount(lower)
		}
	}

	return spec
}

// awsGPUCount estimates the GPU count of an AWS accelerated instance family.
func awsGPUCount(lower string) *int {
	var n int
	switch {
	case strings.Contains(lower, "p4") || strings.Contains(lower, "p5"):
		n = 8 // p4d.24xlarge, p5.48xlarge
	case strings.Contains(lower, "g5"), strings.Contains(lower, "g4"):
		n = 1
		if strings.Contains(lower, "12xlarge") {
			n = 4
		}
	case strings.Contains(lower, "p3"):
		n = 4
		if strings.Contains(lower, "16xlarge") {
			n = 8
		}
	default:
		return nil
	}
	return &n
}
