// 📁 internal/discovery/usb/database.go - USB Board Database
package usb

import (
	"strconv"
	"strings"

	"github.com/google/gousb"

	"monitor-service/internal/model"
)

// BoardDatabase identifies boards by USB vendor and product ID
type BoardDatabase struct {
	vendors map[gousb.ID]*VendorInfo
}

// VendorInfo contains vendor-specific information
type VendorInfo struct {
	Name     string
	products map[gousb.ID]model.BoardRef
}

// NewBoardDatabase creates and initializes the board database
func NewBoardDatabase() *BoardDatabase {
	db := &BoardDatabase{
		vendors: make(map[gousb.ID]*VendorInfo),
	}
	db.initializeDatabase()
	return db
}

// initializeDatabase populates the known boards
func (db *BoardDatabase) initializeDatabase() {
	db.AddVendor(0x2341, &VendorInfo{Name: "Arduino SA"})
	db.AddProduct(0x2341, 0x0001, model.BoardRef{Name: "Arduino Uno", FQBN: "arduino:avr:uno"})
	db.AddProduct(0x2341, 0x0043, model.BoardRef{Name: "Arduino Uno", FQBN: "arduino:avr:uno"})
	db.AddProduct(0x2341, 0x0010, model.BoardRef{Name: "Arduino Mega 2560", FQBN: "arduino:avr:mega"})
	db.AddProduct(0x2341, 0x0042, model.BoardRef{Name: "Arduino Mega 2560", FQBN: "arduino:avr:mega"})
	db.AddProduct(0x2341, 0x8036, model.BoardRef{Name: "Arduino Leonardo", FQBN: "arduino:avr:leonardo"})
	db.AddProduct(0x2341, 0x8037, model.BoardRef{Name: "Arduino Micro", FQBN: "arduino:avr:micro"})
	db.AddProduct(0x2341, 0x0058, model.BoardRef{Name: "Arduino Nano Every", FQBN: "arduino:megaavr:nona4809"})
	db.AddProduct(0x2341, 0x8057, model.BoardRef{Name: "Arduino Nano 33 IoT", FQBN: "arduino:samd:nano_33_iot"})
	db.AddProduct(0x2341, 0x805a, model.BoardRef{Name: "Arduino Nano 33 BLE", FQBN: "arduino:mbed_nano:nano33ble"})
	db.AddProduct(0x2341, 0x0069, model.BoardRef{Name: "Arduino Uno R4 Minima", FQBN: "arduino:renesas_uno:minima"})
	db.AddProduct(0x2341, 0x1002, model.BoardRef{Name: "Arduino Uno R4 WiFi", FQBN: "arduino:renesas_uno:unor4wifi"})

	db.AddVendor(0x239a, &VendorInfo{Name: "Adafruit Industries"})
	db.AddProduct(0x239a, 0x800b, model.BoardRef{Name: "Adafruit Feather M0", FQBN: "adafruit:samd:adafruit_feather_m0"})
	db.AddProduct(0x239a, 0x8022, model.BoardRef{Name: "Adafruit Feather M4 Express", FQBN: "adafruit:samd:adafruit_feather_m4"})

	db.AddVendor(0x303a, &VendorInfo{Name: "Espressif Systems"})
	db.AddProduct(0x303a, 0x1001, model.BoardRef{Name: "ESP32-S3 USB JTAG/serial", FQBN: "esp32:esp32:esp32s3"})

	// USB to UART bridges carry no board identity of their own
	db.AddVendor(0x0403, &VendorInfo{Name: "FTDI"})
	db.AddVendor(0x1a86, &VendorInfo{Name: "WCH (CH340)"})
	db.AddVendor(0x10c4, &VendorInfo{Name: "Silicon Labs (CP210x)"})
}

// IsKnownVendor checks if a vendor ID is in the database
func (db *BoardDatabase) IsKnownVendor(vendorID gousb.ID) bool {
	_, exists := db.vendors[vendorID]
	return exists
}

// GetVendorInfo retrieves vendor information
func (db *BoardDatabase) GetVendorInfo(vendorID gousb.ID) *VendorInfo {
	return db.vendors[vendorID]
}

// GetBoard retrieves the board for a product of this vendor
func (vi *VendorInfo) GetBoard(productID gousb.ID) (model.BoardRef, bool) {
	board, ok := vi.products[productID]
	return board, ok
}

// Identify resolves hexadecimal VID and PID strings as reported by the
// serial enumerator. The vendor name is returned even when the product is
// unknown.
func (db *BoardDatabase) Identify(vid, pid string) (vendor string, board *model.BoardRef) {
	vendorID, ok := ParseID(vid)
	if !ok {
		return "", nil
	}
	info := db.GetVendorInfo(vendorID)
	if info == nil {
		return "", nil
	}
	productID, ok := ParseID(pid)
	if !ok {
		return info.Name, nil
	}
	if b, found := info.GetBoard(productID); found {
		return info.Name, &b
	}
	return info.Name, nil
}

// GetTotalProductCount returns total number of known boards
func (db *BoardDatabase) GetTotalProductCount() int {
	total := 0
	for _, vendor := range db.vendors {
		total += len(vendor.products)
	}
	return total
}

// AddVendor adds a new vendor to the database
func (db *BoardDatabase) AddVendor(vendorID gousb.ID, info *VendorInfo) {
	if info.products == nil {
		info.products = make(map[gousb.ID]model.BoardRef)
	}
	db.vendors[vendorID] = info
}

// AddProduct adds a new board to an existing vendor
func (db *BoardDatabase) AddProduct(vendorID, productID gousb.ID, board model.BoardRef) {
	if vendor, exists := db.vendors[vendorID]; exists {
		vendor.products[productID] = board
	}
}

// ParseID parses a hexadecimal USB ID with or without a 0x prefix
func ParseID(s string) (gousb.ID, bool) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, false
	}
	return gousb.ID(n), true
}
