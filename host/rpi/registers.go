package rpi

// Peripheral base addresses and register offsets for the BCM283x family,
// the same chips google-periph's host/bcm283x targets. Pi1 uses
// 0x20000000; Pi2/3 use 0x3F000000; Pi4 uses 0xFE000000. Init picks the
// right base from /proc/cpuinfo's Revision field, the same signal
// host/bcm283x uses to distinguish chip generations.
const (
	peripheralBaseBCM2835 = 0x20000000
	peripheralBaseBCM2836 = 0x3F000000
	peripheralBaseBCM2711 = 0xFE000000

	gpioOffset  = 0x200000
	clockOffset = 0x101000
	dmaOffset   = 0x007000
	timerOffset = 0x003000
)

// gpioRegisters mirrors the BCM283x GPIO block's set/clear/level
// registers (Broadcom peripheral datasheet pages 90-96): one bit per
// pin, GPSET/GPCLR write-1-to-set/clear, GPLEV reads the current level.
// Only the subset this package touches is named; the rest of the block
// is left as padding so offsets stay correct.
type gpioRegisters struct {
	fsel    [6]uint32
	_       uint32
	set     [2]uint32
	_       uint32
	clr     [2]uint32
	_       uint32
	lev     [2]uint32
}

// clockRegisters mirrors one clock-manager generator's CTL/DIV pair
// (page 107-108): CTL selects the source oscillator and enables the
// generator, DIV holds a 12.12 fixed-point divider. The 0x5A wait token
// in the top byte of both registers is the documented password BCM283x
// requires on every write to this block.
type clockRegisters struct {
	ctl uint32
	div uint32
}

const (
	clockPasswd      = 0x5A << 24
	clockSrcOscillator = 1 // 19.2MHz crystal, matches host/bcm283x's srcOscillator
	clockEnable      = 1 << 4
	clockBusy        = 1 << 7
	clockKill        = 1 << 5
	clockDivIShift   = 12
)

// dmaControlBlock mirrors one BCM283x DMA control block (pages 40-43):
// a single-shot descriptor the controller reads to perform one
// transfer, chained via nextControlBlockAddr when more than one is
// needed.
type dmaControlBlock struct {
	transferInfo      uint32
	sourceAddr        uint32
	destAddr          uint32
	transferLen       uint32
	stride            uint32
	nextControlBlockAddr uint32
	_                 [2]uint32 // reserved, must be zero
}

const (
	dmaTransferInfoDestDREQ   = 1 << 6
	dmaTransferInfoSrcInc     = 1 << 8
	dmaTransferInfoWaitResp   = 1 << 3
	dmaTransferInfoPermapShift = 16

	dmaCSActive    = 1 << 0
	dmaCSEnd       = 1 << 1
	dmaCSError     = 1 << 8
	dmaCSReset     = 1 << 31
	dmaCSAbort     = 1 << 30
)

// dmaChannelRegisters mirrors one DMA channel's register file (page
// 40): CS is the control/status word, controlBlockAddr points at the
// active control block, and debug holds the channel's error flags.
// Disable and WaitComplete read and write only CS.
type dmaChannelRegisters struct {
	cs            uint32
	controlBlockAddr uint32
	transferInfo  uint32
	sourceAddr    uint32
	destAddr      uint32
	transferLen   uint32
	stride        uint32
	nextControlBlockAddr uint32
	debug         uint32
}

// dmaChannelStride is the byte spacing between consecutive channels'
// register files.
const dmaChannelStride = 0x100

// timerRegisters mirrors the BCM283x free-running counter (page 172):
// a 64-bit microsecond counter split across two 32-bit registers, used
// here only to synthesize a software pacing fallback when no dedicated
// PWM/clock hardware trigger is wired up.
type timerRegisters struct {
	cs  uint32
	clo uint32
	chi uint32
}
