package vmdk

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// descriptorTemplate is the embedded text descriptor for a stream-optimized
// extent. createType, adapter type, and the DDB geometry fields are fixed;
// CID, longContentID, sector count and cylinder count are substituted per
// output.
const descriptorTemplate = `# Disk Descriptor File
version=1
CID=%s
parentCID=ffffffff
createType="streamOptimized"

# Extent description
RDONLY %d SPARSE "stream-optimized.vmdk"

# The Disk Data Base
#DDB

ddb.adapterType = "ide"
# %d / 63 / 255
ddb.geometry.cylinders = "%d"
ddb.geometry.heads = "255"
ddb.geometry.sectors = "63"
ddb.longContentID = "%s"
ddb.virtualHWVersion = "7"
`

// cidRand is seeded from crypto/rand rather than the wall clock so that two
// transcodes started in the same process tick still get distinct CIDs;
// the value itself carries no cryptographic requirement.
var cidRand = rand.New(rand.NewSource(seedFromCryptoRand()))

func seedFromCryptoRand() int64 {
	var b [8]byte
	if _, err := cryptorand.Read(b[:]); err != nil {
		return 1
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

// randomCID returns 8 lowercase hex digits from a uniformly random 32-bit
// value in [1, 0xFFFFFFFF]. It doesn't need to be cryptographically
// random, only distinct enough across invocations to serve as a disk
// content identifier.
func randomCID() string {
	v := uint32(cidRand.Int63n(0xFFFFFFFF)) + 1
	return fmt.Sprintf("%08x", v)
}

// longContentID returns a 32 hex-digit identifier derived from a version-1
// UUID with the hyphens stripped, per the original tool's longContentID
// scheme.
func longContentID() string {
	id, err := uuid.NewUUID()
	if err != nil {
		// uuid.NewUUID only fails if the host can't provide a MAC address
		// or clock sequence; fall back to a random v4 UUID rather than
		// aborting the transcode over a cosmetic field.
		id = uuid.New()
	}
	return strings.ReplaceAll(id.String(), "-", "")
}

// cylinders returns ceil(capacitySectors / (63*255)), the CHS cylinder
// count recorded in the descriptor's DDB geometry block.
func cylinders(capacitySectors uint64) uint64 {
	const sectorsPerCylinder = 63 * 255
	return (capacitySectors + sectorsPerCylinder - 1) / sectorsPerCylinder
}

// RenderDescriptor produces the ASCII descriptor block for a stream-
// optimized extent of the given capacity (in sectors), zero-padded to a
// sector boundary.
func RenderDescriptor(capacitySectors uint64) []byte {
	text := fmt.Sprintf(descriptorTemplate,
		randomCID(),
		capacitySectors,
		capacitySectors,
		cylinders(capacitySectors),
		longContentID(),
	)
	return PadToSector([]byte(text))
}
