// Package invoice writes one text record per completed rental and reads
// them back for reporting.
//
// The record is a versioned line-oriented log format. Every field lives on
// its own line behind a fixed label:
//
//	Format: fleet-invoice/1
//	User: ana
//	ID card number: 123456789
//	Driver's license number: 987654321
//	Rented vehicle: Car A4,C1
//	Start location: (0,0)
//	Destination: (3,2)
//	City zone: wide city area
//	Ride duration [s]: 30
//	Base price: 1 * 30 = 30
//	Rate for wide area of the city: 1.5
//	Amount: 45 EUR
//	Discount: 10% (4.5 EUR)
//	Promotion: 15% (6.75 EUR)
//	Total price: 33.75 EUR
//	Date and time: 01.06.2024/09-30
//	Invoice number: 7
//	Fault: Flat tyre
//
// Document lines appear only for vehicles that require documents. Discount,
// Promotion and Fault lines appear only when they apply. The reader ignores
// banners, separators and unknown labels, and rejects records without a
// total or a vehicle id.
package invoice
