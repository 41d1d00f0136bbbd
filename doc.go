// Package w25q drives Winbond W25Qxx serial NOR flash chips (W25Q10 through
// W25Q512) over SPI.
//
// A Flash is bound to a Transport (chip-select plus SPI byte exchange) and
// must be initialized with Init, which reads the JEDEC ID and derives the
// chip geometry. Page, sector and block granular reads, writes, erases and
// emptiness checks are then available. Each public call holds the device for
// its whole duration, so calls from several goroutines are serialized.
//
// # References:
//
// SPI Flash
//   - [W25Q128]: W25Q128JV-DTR Winbond Serial Flash Memory (https://www.winbond.com/resource-files/W25Q128JV_DTR%20RevD%2012232024%20Plus.pdf)
//   - [W25Q256]: W25Q256JV Winbond Serial Flash Memory with 4-Byte Address Mode
//   - [W25Q512]: W25Q512JV Winbond Serial Flash Memory with 4-Byte Address Mode
//   - [W25Q16]: W25Q16JV Winbond Serial Flash Memory
//
// FTDI (https://ftdichip.com/document/application-notes/)
//   - [FTDI-AN_108]: Command Processor for MPSSE and MCU Host Bus Emulation Modes (https://ftdichip.com/wp-content/uploads/2020/08/AN_108_Command_Processor_for_MPSSE_and_MCU_Host_Bus_Emulation_Modes.pdf)
//   - [FTDI-AN_114]: Interfacing FT2232H Hi-Speed Devices To SPI Bus (https://ftdichip.com/wp-content/uploads/2020/08/AN_114_FTDI_Hi_Speed_USB_To_SPI_Example.pdf)
//   - [FTDI-AN_135]: FTDI MPSSE Basics (https://ftdichip.com/wp-content/uploads/2020/08/AN_135_MPSSE_Basics.pdf)
//   - [FTDI-DS_FT2232H]: FT2232H Hi-Speed Dual USB UART/FIFO IC Data Sheet (https://ftdichip.com/wp-content/uploads/2024/09/DS_FT2232H.pdf)
//
// Boards
//   - [iCEBreaker]: iCEBreaker FPGA (https://github.com/icebreaker-fpga/icebreaker/blob/master/hardware/v1.0e/icebreaker-sch.pdf)
package w25q
