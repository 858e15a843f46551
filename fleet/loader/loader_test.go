package loader

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/fleet-rental-sim/fleet/rental"
	"github.com/wricardo/fleet-rental-sim/fleet/vehicle"
)

const vehiclesCSV = `id,producer,model,purchase date,price,range,max speed,description,type
C1,Audi,A4,1.2.2023.,40000,,,Family car,car
B1,Xiaomi,City,,1200,30,,,bike
S1,Segway,Ninebot,,600,,25,,scooter
C1,Audi,A6,1.2.2023.,50000,,,Duplicate,car
T1,Volvo,FH,,90000,,,,truck
X1,Broken,Row
P1,Nobody,Cheap,,not-a-price,,,,car
B2,Rival,Trail,,800,abc,,,bike
`

func newTestLoader() *Loader {
	return New(vehicle.DefaultCityMap, []string{"Flat tyre"}, rand.New(rand.NewSource(3)), nil)
}

func TestLoadVehicles(t *testing.T) {
	catalog, skips, err := newTestLoader().LoadVehicles(strings.NewReader(vehiclesCSV))
	require.NoError(t, err)

	require.Len(t, catalog, 4)
	car := catalog["C1"]
	assert.Equal(t, vehicle.Car, car.Kind)
	assert.Equal(t, "A4", car.Model)
	assert.Equal(t, 40000.0, car.PurchasePrice)
	assert.Equal(t, time.Date(2023, 2, 1, 0, 0, 0, 0, time.Local), car.PurchaseDate)
	assert.GreaterOrEqual(t, car.Passengers, 1)
	assert.LessOrEqual(t, car.Passengers, vehicle.MaxCarPassengers)
	assert.Equal(t, vehicle.FullBattery, car.Battery)

	assert.Equal(t, 30.0, catalog["B1"].RangePerCharge)
	assert.Equal(t, 25.0, catalog["S1"].MaxSpeed)
	assert.Zero(t, catalog["B2"].RangePerCharge)

	require.Len(t, skips, 4)
	assert.ErrorIs(t, skips[0], ErrDuplicateVehicle)
	assert.ErrorIs(t, skips[1], ErrBadRow)
	assert.ErrorIs(t, skips[2], ErrColumnCount)
	assert.ErrorIs(t, skips[3], ErrBadRow)
	assert.Equal(t, 5, skips[0].Line)
}

func testCatalog() map[string]vehicle.Vehicle {
	return map[string]vehicle.Vehicle{
		"C1": {ID: "C1", Kind: vehicle.Car, Battery: 100},
		"B1": {ID: "B1", Kind: vehicle.Bike, Battery: 100},
	}
}

func TestLoadRentals(t *testing.T) {
	input := `date,user,vehicle,start,end,duration,fault,promotion
1.6.2024 10:00,ana,C1,"0,0","3,2",30,no,yes
1.6.2024 09:00,ivan,B1,"5,5","6,6",12,yes,no
1.6.2024 09:00,mila,C1,"1,1","2,2",10,no,no
1.6.2024 09:00,ana,C1,"1,1","2,2",10,no,no
1.6.2024 11:00,ana,Z9,"1,1","2,2",10,no,no
1.6.2024 11:00,ana,B1,"1,1","25,2",10,no,no
1.6.2024 11:00,ana,B1,"1,1",10,no,no
bad date,ana,B1,"1,1","2,2",10,no,no
1.6.2024 12:00,ana,B1,"1,1","2,2",-5,no,no
`
	users := rental.NewRegistry(rand.New(rand.NewSource(1)))
	reqs, skips, err := newTestLoader().LoadRentals(strings.NewReader(input), testCatalog(), users)
	require.NoError(t, err)

	require.Len(t, reqs, 3)
	assert.Equal(t, "ivan", reqs[0].User.Name)
	assert.Equal(t, "mila", reqs[1].User.Name)
	assert.Equal(t, "ana", reqs[2].User.Name)
	assert.Equal(t, 0, reqs[2].User.RentalCount)
	assert.True(t, reqs[2].Promotion)
	assert.Equal(t, vehicle.Position{X: 3, Y: 2}, reqs[2].End)

	require.True(t, reqs[0].FaultFlag)
	require.NotNil(t, reqs[0].Vehicle.Fault)
	assert.Equal(t, "Flat tyre", reqs[0].Vehicle.Fault.Description)
	assert.Nil(t, reqs[1].Vehicle.Fault)

	require.Len(t, skips, 6)
	assert.ErrorIs(t, skips[0], ErrDoubleBooking)
	assert.ErrorIs(t, skips[1], ErrUnknownVehicle)
	assert.ErrorIs(t, skips[2], ErrBadCoordinate)
	assert.ErrorIs(t, skips[3], ErrColumnCount)
	assert.ErrorIs(t, skips[4], ErrBadRow)
	assert.ErrorIs(t, skips[5], ErrBadRow)
}

func TestLoadRentalsCopiesVehicles(t *testing.T) {
	catalog := testCatalog()
	input := "header\n1.6.2024 10:00,ana,C1,\"0,0\",\"1,1\",5,yes,no\n"

	reqs, _, err := newTestLoader().LoadRentals(strings.NewReader(input), catalog, nil)
	require.NoError(t, err)
	require.Len(t, reqs, 1)

	reqs[0].Vehicle.Battery = 10
	assert.Equal(t, 100, catalog["C1"].Battery)
	assert.Nil(t, catalog["C1"].Fault)
}

func TestLoadMissingFiles(t *testing.T) {
	l := newTestLoader()
	_, _, err := l.LoadVehiclesFile("does/not/exist.csv")
	assert.Error(t, err)
	_, _, err = l.LoadRentalsFile("does/not/exist.csv", testCatalog(), nil)
	assert.Error(t, err)
}
