package signals

import (
	"regexp"
	"strconv"
	"strings"

	"game-recommendation-engine/internal/models"
)

var (
	memoryPattern       = regexp.MustCompile(`(?i)Memory:?\s*(\d+)\s*GB`)
	storagePattern      = regexp.MustCompile(`(?i)Storage:?\s*(\d+)\s*GB`)
	vramPattern         = regexp.MustCompile(`(?i)(\d+)\s*GB\+?\s*(?:of\s+)?VRAM`)
	directXPattern      = regexp.MustCompile(`(?i)DirectX:?\s*Version\s*(\d+)`)
	ssdPattern          = regexp.MustCompile(`(?i)\bSSD\b`)
	windowsPattern      = regexp.MustCompile(`(?i)\bwindows\b`)
	windowsVersion      = regexp.MustCompile(`(?i)windows\s+(\d+)`)
	macPattern          = regexp.MustCompile(`(?i)\bmac(?:os)?\b`)
	linuxPattern        = regexp.MustCompile(`(?i)\blinux\b`)
	architecturePattern = regexp.MustCompile(`(?i)\b64-bit\b`)
)

// ExtractHardwareSpecs pattern-matches a minimum-requirements block. Fields
// whose pattern is absent stay nil.
func ExtractHardwareSpecs(text string) models.HardwareSpec {
	var spec models.HardwareSpec
	if strings.TrimSpace(text) == "" {
		return spec
	}

	spec.MemoryGB = firstInt(memoryPattern, text)
	spec.StorageGB = firstInt(storagePattern, text)
	spec.VRAMGB = firstInt(vramPattern, text)
	spec.DirectXVersion = firstInt(directXPattern, text)
	spec.SSDRequired = ssdPattern.MatchString(text)

	switch {
	case windowsPattern.MatchString(text):
		spec.OSType = osPtr(models.OSWindows)
		spec.OSVersion = firstInt(windowsVersion, text)
		if architecturePattern.MatchString(text) {
			arch := "64-bit"
			spec.Architecture = &arch
		}
	case macPattern.MatchString(text):
		spec.OSType = osPtr(models.OSMac)
	case linuxPattern.MatchString(text):
		spec.OSType = osPtr(models.OSLinux)
	}

	lower := strings.ToLower(text)
	spec.GPUBrand = detectGPU(lower)
	spec.CPUBrand = detectCPU(lower)

	return spec
}

// detectGPU checks brands in priority order: nvidia, amd, then intel only
// when integrated graphics are mentioned.
func detectGPU(lower string) *models.HardwareBrand {
	switch {
	case containsAny(lower, "nvidia", "gtx", "rtx"):
		return brandPtr(models.BrandNvidia)
	case containsAny(lower, "amd", "radeon"):
		return brandPtr(models.BrandAMD)
	case strings.Contains(lower, "intel") && strings.Contains(lower, "graphics"):
		return brandPtr(models.BrandIntel)
	}
	return nil
}

// detectCPU requires a processor-context word somewhere in the block.
func detectCPU(lower string) *models.HardwareBrand {
	switch {
	case strings.Contains(lower, "intel") && containsAny(lower, "processor", "cpu"):
		return brandPtr(models.BrandIntel)
	case strings.Contains(lower, "amd") && containsAny(lower, "processor", "cpu", "fx", "ryzen"):
		return brandPtr(models.BrandAMD)
	}
	return nil
}

func firstInt(pattern *regexp.Regexp, text string) *int {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func osPtr(o models.OSType) *models.OSType { return &o }

func brandPtr(b models.HardwareBrand) *models.HardwareBrand { return &b }
