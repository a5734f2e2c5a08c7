package ovf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	xml "github.com/michaelkedar/xml"
)

func testParams() Params {
	return Params{
		Name:      "my-app",
		CPUs:      2,
		MemoryMiB: 2048,
		DiskGiB:   10,
		VMDKHref:  "my-app-drive.vmdk",
		VMDKBytes: 123456,
	}
}

func TestGenerateWellFormed(t *testing.T) {
	out, err := Generate(testParams())
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), `<?xml version="1.0" encoding="UTF-8"?>`))

	dec := xml.NewDecoder(strings.NewReader(string(out)))
	var elementCount int
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if _, ok := tok.(xml.StartElement); ok {
			elementCount++
		}
	}
	assert.Greater(t, elementCount, 20)
}

func TestGenerateContainsRequiredFields(t *testing.T) {
	out, err := Generate(testParams())
	assert.NoError(t, err)
	s := string(out)

	assert.Contains(t, s, `vmw:buildId="build-2494585"`)
	assert.Contains(t, s, `xmlns:cim="`+nsCIM+`"`)
	assert.Contains(t, s, `xmlns:rasd="`+nsRASD+`"`)
	assert.Contains(t, s, `xmlns:vmw="`+nsVMW+`"`)
	assert.Contains(t, s, `xmlns:vssd="`+nsVSSD+`"`)
	assert.Contains(t, s, `xmlns:xsi="`+nsXSI+`"`)

	assert.Contains(t, s, `ovf:href="my-app-drive.vmdk"`)
	assert.Contains(t, s, `ovf:id="file1"`)
	assert.Contains(t, s, `ovf:size="123456"`)

	assert.Contains(t, s, `ovf:capacity="10"`)
	assert.Contains(t, s, `ovf:format="`+diskFormatStreamOptimized+`"`)

	assert.Contains(t, s, `ovf:id="78"`)
	assert.Contains(t, s, `vmw:osType="freebsd64Guest"`)
	assert.Contains(t, s, "vmx-08")

	assert.Contains(t, s, "PIIX4")
	assert.Contains(t, s, "VmxNet3")
	assert.Contains(t, s, "ovf:/disk/vmdisk1")

	for _, kv := range []string{
		"cpuHotAddEnabled", "firmware", "powerOpInfo.powerOffType",
		"tools.syncTimeWithHost", "tools.toolsUpgradePolicy",
	} {
		assert.Contains(t, s, kv)
	}
}

func TestGenerateHardDiskParentsIDEController(t *testing.T) {
	out, err := Generate(testParams())
	assert.NoError(t, err)
	s := string(out)

	idx := strings.Index(s, "Hard Disk 1")
	assert.GreaterOrEqual(t, idx, 0)
	// The Hard Disk item's Parent element should reference the first IDE
	// controller's InstanceID, assigned ahead of it in build order (System=0,
	// CPU=1, memory=2, ideController0=3).
	assert.Contains(t, s[idx:idx+400], "<rasd:Parent>3</rasd:Parent>")
}

func TestGenerateEthernetHasNoParent(t *testing.T) {
	out, err := Generate(testParams())
	assert.NoError(t, err)
	s := string(out)

	idx := strings.Index(s, "Ethernet 1")
	assert.GreaterOrEqual(t, idx, 0)
	end := strings.Index(s[idx:], "</Item>")
	assert.NotContains(t, s[idx:idx+end], "rasd:Parent")
}
