// Package v2495 programs the firmware flash of a V2495 programmable logic
// board through its flash controller register window.
//
// The flash is never accessed directly. Every command goes through the
// controller registers: an opcode/status register, an address register, a
// payload length register and a 64 word staging window holding one page.
// The registers are reached over a reg.Transport, for example a bridge.Bridge
// on a FT232H SPI port, a mmio.Mem mapping or a regsim.Controller.
//
// A typical upgrade:
//
//	d, err := v2495.Open(t, v2495.User, v2495.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	return d.Session(func(d *v2495.Device) error {
//		img := v2495.FileImage{Path: "v2495_user.rbf"}
//		return d.ProgramFirmware(v2495.App1, img, v2495.ProgramOptions{Verify: true})
//	})
//
// # References:
//
// CAEN
//   - [V2495]: V2495 Programmable Logic Unit PLUS user manual, section "Firmware Upgrade"
//   - [CAENComm]: CAENComm library reference manual (register transport)
//
// Flash
//   - [N25Q]: Micron N25Q serial NOR flash datasheet, status register block protect bits
//   - [AN_114]: FTDI Interfacing FT2232H Hi-Speed Devices To SPI Bus (https://ftdichip.com/wp-content/uploads/2020/08/AN_114_FTDI_Hi_Speed_USB_To_SPI_Example.pdf)
package v2495
