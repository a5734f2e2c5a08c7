// Package ova packages a transcoded stream-optimized VMDK and its OVF
// envelope into a single OVA (tar) archive, following the original tool's
// pattern of assembling the image out to a scratch temp file and only
// taring it up once the final size is known.
package ova

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"regexp"

	"github.com/mkova/mkova/pkg/ovf"
	"github.com/mkova/mkova/pkg/vmdk"
)

var nameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9!-).]+`)

// Params describes the virtual machine the OVA should describe, plus the
// resize target applied to the source VMDK during transcoding.
type Params struct {
	Name      string
	CPUs      int
	MemoryMiB int
	DiskGiB   int
}

// sanitizedName strips name down to the character set the original tool
// allowed in an OVA's member names, falling back to a generic name if
// nothing survives.
func sanitizedName(name string) string {
	if s := nameSanitizer.ReplaceAllString(name, ""); s != "" {
		return s
	}
	return "image"
}

// Package reads a monolithic-sparse VMDK from src, transcodes it to a
// stream-optimized VMDK in a scratch temp file, renders the matching OVF
// envelope, and tars both into dst in the order OVF readers expect: the
// .ovf member first, then the -drive.vmdk member.
//
// progress, if non-nil, receives one Increment call per grain written.
func Package(ctx context.Context, src io.ReadSeeker, dst io.Writer, p Params, progress vmdk.ProgressReporter) error {
	name := sanitizedName(p.Name)

	tmp, err := ioutil.TempFile("", "mkova-*.vmdk")
	if err != nil {
		return fmt.Errorf("create scratch vmdk: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	result, err := vmdk.Transcode(ctx, src, tmp, p.DiskGiB, progress)
	if err != nil {
		// Returned unprefixed so a vmdk error kind stays at the start of
		// the message.
		return err
	}

	vmdkName := name + "-drive.vmdk"
	ovfBytes, err := ovf.Generate(ovf.Params{
		Name:      name,
		CPUs:      p.CPUs,
		MemoryMiB: p.MemoryMiB,
		DiskGiB:   p.DiskGiB,
		VMDKHref:  vmdkName,
		VMDKBytes: result.Bytes,
	})
	if err != nil {
		return fmt.Errorf("generate ovf: %w", err)
	}

	tw := tar.NewWriter(dst)

	if err := tw.WriteHeader(&tar.Header{
		Name: name + ".ovf",
		Mode: 0644,
		Size: int64(len(ovfBytes)),
	}); err != nil {
		return fmt.Errorf("write ovf tar header: %w", err)
	}
	if _, err := tw.Write(ovfBytes); err != nil {
		return fmt.Errorf("write ovf: %w", err)
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek scratch vmdk: %w", err)
	}

	if err := tw.WriteHeader(&tar.Header{
		Name: vmdkName,
		Mode: 0644,
		Size: result.Bytes,
	}); err != nil {
		return fmt.Errorf("write vmdk tar header: %w", err)
	}
	if _, err := io.Copy(tw, tmp); err != nil {
		return fmt.Errorf("write vmdk: %w", err)
	}

	return tw.Close()
}
