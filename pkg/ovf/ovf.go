// Package ovf renders the OVF envelope XML describing the virtual machine
// that wraps a transcoded stream-optimized VMDK: CPU/memory/disk/network
// hardware items, in the shape VMware's OVF tooling (and vmx-08-compatible
// hypervisors) expect.
package ovf

import (
	"bytes"
	"fmt"

	xml "github.com/michaelkedar/xml"
)

const (
	nsCIM  = "http://schemas.dmtf.org/wbem/wscim/1/common"
	nsOVF  = "http://schemas.dmtf.org/ovf/envelope/1"
	nsRASD = "http://schemas.dmtf.org/wbem/wscim/1/cim-schema/2/CIM_ResourceAllocationSettingData"
	nsVMW  = "http://www.vmware.com/schema/ovf"
	nsVSSD = "http://schemas.dmtf.org/wbem/wscim/1/cim-schema/2/CIM_VirtualSystemSettingData"
	nsXSI  = "http://www.w3.org/2001/XMLSchema-instance"

	buildID = "build-2494585"

	diskFormatStreamOptimized = "http://www.vmware.com/interfaces/specifications/vmdk.html#streamOptimized"
)

// Params are the caller-supplied facts needed to render the envelope: VM
// sizing, naming, and the final facts about the transcoded VMDK (its file
// name within the archive and its on-disk size in bytes) rather than
// anything about the source VMDK.
type Params struct {
	Name        string
	CPUs        int
	MemoryMiB   int
	DiskGiB     int
	VMDKHref    string
	VMDKBytes   int64
}

// elem is a minimal element tree, standing in for the builder object the
// original tool threads an ElementTree.Element through. Unlike
// xml.Marshal's struct-tag approach, this lets item-construction code stay
// close to the original's imperative "create element, add attres/children"
// shape while giving each document its own namespace bindings instead of
// relying on a package-level namespace registry.
type elem struct {
	name     string
	attrs    []attr
	children []*elem
	text     string
}

type attr struct {
	name  string
	value string
}

func newElem(name string) *elem {
	return &elem{name: name}
}

func (e *elem) setAttr(name, value string) *elem {
	e.attrs = append(e.attrs, attr{name, value})
	return e
}

func (e *elem) addChild(name string) *elem {
	c := newElem(name)
	e.children = append(e.children, c)
	return c
}

func (e *elem) addTextChild(name, text string) *elem {
	c := e.addChild(name)
	c.text = text
	return c
}

func (e *elem) encode(enc *xml.Encoder) error {
	start := xml.StartElement{Name: xml.Name{Local: e.name}}
	for _, a := range e.attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.name}, Value: a.value})
	}
	if err := enc.EncodeToken(start); err != nil {
		return fmt.Errorf("encode <%s>: %w", e.name, err)
	}
	if e.text != "" {
		if err := enc.EncodeToken(xml.CharData(e.text)); err != nil {
			return err
		}
	}
	for _, c := range e.children {
		if err := c.encode(enc); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// builder accumulates the monotonically increasing RASD InstanceID counter
// across the virtual hardware items of a single VirtualSystem, replacing
// the original tool's name-mangled __instance counter with an explicit
// field threaded through each item-construction call.
type builder struct {
	instanceID int
}

func (b *builder) nextInstanceID() int {
	id := b.instanceID
	b.instanceID++
	return id
}

// itemOpts are the optional RASD fields a hardware Item may carry. Absent
// fields (nil) are omitted entirely, matching the original's `is not None`
// checks.
type itemOpts struct {
	resourceType       string
	resourceSubtype    string
	units              string
	quantity           *int
	address            *int
	automaticAllocation string
	parent             *int
	addressOnParent    *int
	hostResource       string
	requiredFalse      bool
}

func (b *builder) addItem(vhw *elem, name, desc string, opts itemOpts) (*elem, int) {
	item := vhw.addChild("Item")
	if opts.requiredFalse {
		item.setAttr("ovf:required", "false")
	}
	item.addTextChild("rasd:ElementName", name)
	item.addTextChild("rasd:Description", desc)
	id := b.nextInstanceID()
	item.addTextChild("rasd:InstanceID", fmt.Sprint(id))
	if opts.resourceType != "" {
		item.addTextChild("rasd:ResourceType", opts.resourceType)
	}
	if opts.resourceSubtype != "" {
		item.addTextChild("rasd:ResourceSubType", opts.resourceSubtype)
	}
	if opts.units != "" {
		item.addTextChild("rasd:AllocationUnits", opts.units)
	}
	if opts.quantity != nil {
		item.addTextChild("rasd:VirtualQuantity", fmt.Sprint(*opts.quantity))
	}
	if opts.address != nil {
		item.addTextChild("rasd:Address", fmt.Sprint(*opts.address))
	}
	if opts.automaticAllocation != "" {
		item.addTextChild("rasd:AutomaticAllocation", opts.automaticAllocation)
	}
	if opts.parent != nil {
		item.addTextChild("rasd:Parent", fmt.Sprint(*opts.parent))
	}
	if opts.addressOnParent != nil {
		item.addTextChild("rasd:AddressOnParent", fmt.Sprint(*opts.addressOnParent))
	}
	if opts.hostResource != "" {
		item.addTextChild("rasd:HostResource", opts.hostResource)
	}
	return item, id
}

func (b *builder) addConfig(e *elem, name, value string) {
	cfg := e.addChild("vmw:Config")
	cfg.setAttr("ovf:required", "false")
	cfg.setAttr("vmw:key", name)
	cfg.setAttr("vmw:value", value)
}

func intp(v int) *int { return &v }

func (b *builder) addNetworkSection(envelope *elem) {
	ns := envelope.addChild("NetworkSection")
	ns.addTextChild("Info", "The list of logical networks")
	network := ns.addChild("Network")
	network.setAttr("ovf:name", "VM Network")
	network.addTextChild("Description", "The VM Network network")
}

func (b *builder) addVirtualSystem(envelope *elem, p Params) {
	vs := envelope.addChild("VirtualSystem")
	vs.setAttr("ovf:id", p.Name)
	vs.addTextChild("Info", "A virtual machine")
	vs.addTextChild("Name", p.Name)

	oss := vs.addChild("OperatingSystemSection")
	oss.setAttr("ovf:id", "78")
	oss.setAttr("vmw:osType", "freebsd64Guest")
	oss.addTextChild("Info", "The kind of installed guest operating system")

	product := vs.addChild("ProductSection")
	product.addTextChild("Info", "Information about the installed software")
	product.addTextChild("Product", "")
	product.addTextChild("Vendor", "")
	product.addTextChild("Version", "")

	vhw := vs.addChild("VirtualHardwareSection")
	vhw.addTextChild("Info", "Virtual hardware requirements")

	system := vhw.addChild("System")
	system.addTextChild("vssd:ElementName", "Virtual Hardware Family")
	system.addTextChild("vssd:InstanceID", fmt.Sprint(b.nextInstanceID()))
	system.addTextChild("vssd:VirtualSystemIdentifier", p.Name)
	system.addTextChild("vssd:VirtualSystemType", "vmx-08")

	b.addItem(vhw, fmt.Sprintf("%d virtual CPU(s)", p.CPUs), "Number of Virtual CPUs", itemOpts{
		resourceType: "3", quantity: intp(p.CPUs), units: "hertz * 10^6",
	})

	b.addItem(vhw, fmt.Sprintf("%dMB of memory", p.MemoryMiB), "Memory Size", itemOpts{
		resourceType: "4", quantity: intp(p.MemoryMiB), units: "byte * 2^20",
	})

	_, controllerID := b.addItem(vhw, "ideController0", "IDE Controller", itemOpts{
		resourceType: "5", resourceSubtype: "PIIX4", address: intp(0),
	})

	b.addItem(vhw, "ideController1", "IDE Controller", itemOpts{
		resourceType: "5", resourceSubtype: "PIIX4", address: intp(0),
	})

	video, _ := b.addItem(vhw, "VirtualVideoCard", "Virtual Video Card", itemOpts{
		resourceType: "24", automaticAllocation: "false", requiredFalse: true,
	})
	b.addConfig(video, "enable3DSupport", "false")
	b.addConfig(video, "enableMPTSupport", "false")
	b.addConfig(video, "use3dRenderer", "automatic")
	b.addConfig(video, "useAutoDetect", "false")
	b.addConfig(video, "videoRamSizeInKB", "4096")

	disk, _ := b.addItem(vhw, "Hard Disk 1", "Hard Disk", itemOpts{
		resourceType: "17", parent: intp(controllerID), addressOnParent: intp(0),
		hostResource: "ovf:/disk/vmdisk1",
	})
	b.addConfig(disk, "backing.writeThrough", "false")

	eth, _ := b.addItem(vhw, "Ethernet 1", `VmxNet3 ethernet adapter on "VM Network"`, itemOpts{
		resourceType: "10", resourceSubtype: "VmxNet3", addressOnParent: intp(7),
		automaticAllocation: "true",
	})
	b.addConfig(eth, "slotInfo.pciSlotNumber", "160")
	b.addConfig(eth, "wakeOnLanEnabled", "true")

	for _, kv := range [][2]string{
		{"cpuHotAddEnabled", "false"},
		{"cpuHotRemoveEnabled", "false"},
		{"firmware", "bios"},
		{"virtualICH7MPresent", "false"},
		{"virtualSMCPresent", "false"},
		{"memoryHotAddEnabled", "false"},
		{"nestedHVEnabled", "false"},
		{"powerOpInfo.powerOffType", "soft"},
		{"powerOpInfo.resetType", "soft"},
		{"powerOpInfo.standbyAction", "checkpoint"},
		{"powerOpInfo.suspendType", "hard"},
		{"tools.afterPowerOn", "true"},
		{"tools.afterResume", "true"},
		{"tools.beforeGuestShutdown", "true"},
		{"tools.beforeGuestStandby", "true"},
		{"tools.syncTimeWithHost", "false"},
		{"tools.toolsUpgradePolicy", "manual"},
	} {
		b.addConfig(vhw, kv[0], kv[1])
	}
}

// Generate renders the complete OVF envelope for p as a UTF-8 XML
// document with an XML declaration, pretty-printed with 2-space
// indentation.
func Generate(p Params) ([]byte, error) {
	envelope := newElem("Envelope")
	envelope.setAttr("xmlns", nsOVF)
	envelope.setAttr("xmlns:cim", nsCIM)
	envelope.setAttr("xmlns:ovf", nsOVF)
	envelope.setAttr("xmlns:rasd", nsRASD)
	envelope.setAttr("xmlns:vmw", nsVMW)
	envelope.setAttr("xmlns:vssd", nsVSSD)
	envelope.setAttr("xmlns:xsi", nsXSI)
	envelope.setAttr("vmw:buildId", buildID)

	references := envelope.addChild("References")
	file := references.addChild("File")
	file.setAttr("ovf:href", p.VMDKHref)
	file.setAttr("ovf:id", "file1")
	file.setAttr("ovf:size", fmt.Sprint(p.VMDKBytes))

	diskSection := envelope.addChild("DiskSection")
	diskSection.addTextChild("Info", "Virtual disk information")
	disk := diskSection.addChild("Disk")
	disk.setAttr("ovf:capacity", fmt.Sprint(p.DiskGiB))
	disk.setAttr("ovf:capacityAllocationUnits", "byte * 2^30")
	disk.setAttr("ovf:diskId", "vmdisk1")
	disk.setAttr("ovf:fileRef", "file1")
	disk.setAttr("ovf:format", diskFormatStreamOptimized)

	b := &builder{}
	b.addNetworkSection(envelope)
	b.addVirtualSystem(envelope, p)

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := envelope.encode(enc); err != nil {
		return nil, fmt.Errorf("encode ovf envelope: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("flush ovf envelope: %w", err)
	}
	buf.WriteByte('\n')

	return buf.Bytes(), nil
}
