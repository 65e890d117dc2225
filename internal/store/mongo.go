package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/hrms-lite/hrms/internal/model"
)

const (
	employeesCollection  = "employees"
	attendanceCollection = "attendance"
)

// Mongo is the document-store gateway.
type Mongo struct {
	url    string
	dbName string

	mu     sync.Mutex
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo creates an unconnected gateway for the given server and database.
func NewMongo(url, dbName string) *Mongo {
	return &Mongo{url: url, dbName: dbName}
}

// employeeDoc is the stored shape of an employee. The ObjectID never leaves
// this package.
type employeeDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	EmployeeID string             `bson:"employee_id"`
	FullName   string             `bson:"full_name"`
	Email      string             `bson:"email"`
	Department string             `bson:"department"`
	CreatedAt  time.Time          `bson:"created_at"`
}

func (d employeeDoc) model() model.Employee {
	return model.Employee{
		EmployeeID: d.EmployeeID,
		FullName:   d.FullName,
		Email:      d.Email,
		Department: d.Department,
		CreatedAt:  d.CreatedAt.UTC(),
	}
}

type attendanceDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	EmployeeID string             `bson:"employee_id"`
	Date       string             `bson:"date"`
	Status     string             `bson:"status"`
	CreatedAt  time.Time          `bson:"created_at"`
}

func (d attendanceDoc) model() model.Attendance {
	return model.Attendance{
		EmployeeID: d.EmployeeID,
		Date:       d.Date,
		Status:     model.Status(d.Status),
		CreatedAt:  d.CreatedAt.UTC(),
	}
}

func (g *Mongo) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(g.url).SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return errors.Wrap(err, "connecting to mongo")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return errors.Wrap(err, "pinging mongo")
	}
	db := client.Database(g.dbName)
	if err := ensureMongoIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return err
	}

	g.client = client
	g.db = db
	return nil
}

func ensureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(employeesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "employee_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(IndexEmployeeID),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(IndexEmail),
		},
	})
	if err != nil {
		return errors.Wrap(err, "creating employee indexes")
	}
	_, err = db.Collection(attendanceCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "employee_id", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true).SetName(IndexEmployeeDate),
	})
	return errors.Wrap(err, "creating attendance indexes")
}

func (g *Mongo) Disconnect(ctx context.Context) error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return nil
	}
	err := g.client.Disconnect(ctx)
	g.client, g.db = nil, nil
	return errors.Wrap(err, "disconnecting from mongo")
}

func (g *Mongo) Ping(ctx context.Context) error {
	g.mu.Lock()
	client := g.client
	g.mu.Unlock()
	if client == nil {
		return ErrNotConnected
	}
	return client.Ping(ctx, readpref.Primary())
}

func (g *Mongo) collection(name string) (*mongo.Collection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.db == nil {
		return nil, ErrNotConnected
	}
	return g.db.Collection(name), nil
}

func (g *Mongo) Employees() EmployeeCollection    { return mongoEmployees{g} }
func (g *Mongo) Attendance() AttendanceCollection { return mongoAttendance{g} }

// mongoWriteError maps a duplicate key failure to *DuplicateKeyError naming
// the violated index.
func mongoWriteError(err error, candidates ...string) error {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return err
	}
	name := duplicateIndexName(err.Error())
	for _, index := range candidates {
		if name == index {
			return &DuplicateKeyError{Index: index, Err: err}
		}
	}
	return &DuplicateKeyError{Index: candidates[0], Err: err}
}

// duplicateIndexName extracts the index from an E11000 message of the form
// "... collection: db.coll index: <name> dup key: { ... }". The key value
// comes after the name and is never inspected.
func duplicateIndexName(msg string) string {
	const marker = " index: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(marker):]
	if j := strings.IndexByte(rest, ' '); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

type mongoEmployees struct{ g *Mongo }

func (c mongoEmployees) Insert(ctx context.Context, e model.Employee) error {
	coll, err := c.g.collection(employeesCollection)
	if err != nil {
		return err
	}
	_, err = coll.InsertOne(ctx, employeeDoc{
		EmployeeID: e.EmployeeID,
		FullName:   e.FullName,
		Email:      e.Email,
		Department: e.Department,
		CreatedAt:  e.CreatedAt,
	})
	return mongoWriteError(err, IndexEmployeeID, IndexEmail)
}

func (c mongoEmployees) findOne(ctx context.Context, filter bson.M) (*model.Employee, error) {
	coll, err := c.g.collection(employeesCollection)
	if err != nil {
		return nil, err
	}
	var doc employeeDoc
	if err := coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "finding employee")
	}
	e := doc.model()
	return &e, nil
}

func (c mongoEmployees) FindByID(ctx context.Context, employeeID string) (*model.Employee, error) {
	return c.findOne(ctx, bson.M{"employee_id": employeeID})
}

func (c mongoEmployees) FindByEmail(ctx context.Context, email string) (*model.Employee, error) {
	return c.findOne(ctx, bson.M{"email": email})
}

func (c mongoEmployees) FindByEmailExcluding(ctx context.Context, email, excludeID string) (*model.Employee, error) {
	return c.findOne(ctx, bson.M{"email": email, "employee_id": bson.M{"$ne": excludeID}})
}

func (c mongoEmployees) Update(ctx context.Context, employeeID string, patch model.EmployeePatch) (bool, error) {
	coll, err := c.g.collection(employeesCollection)
	if err != nil {
		return false, err
	}
	set := bson.M{}
	if v, ok := patch.FullName.Get(); ok {
		set["full_name"] = v
	}
	if v, ok := patch.Email.Get(); ok {
		set["email"] = v
	}
	if v, ok := patch.Department.Get(); ok {
		set["department"] = v
	}
	res, err := coll.UpdateOne(ctx, bson.M{"employee_id": employeeID}, bson.M{"$set": set})
	if err != nil {
		return false, mongoWriteError(err, IndexEmail)
	}
	return res.MatchedCount > 0, nil
}

func (c mongoEmployees) Delete(ctx context.Context, employeeID string) (bool, error) {
	coll, err := c.g.collection(employeesCollection)
	if err != nil {
		return false, err
	}
	res, err := coll.DeleteOne(ctx, bson.M{"employee_id": employeeID})
	if err != nil {
		return false, errors.Wrap(err, "deleting employee")
	}
	return res.DeletedCount > 0, nil
}

func (c mongoEmployees) List(ctx context.Context) ([]model.Employee, error) {
	coll, err := c.g.collection(employeesCollection)
	if err != nil {
		return nil, err
	}
	cursor, err := coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "listing employees")
	}
	var docs []employeeDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "reading employees")
	}
	out := make([]model.Employee, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (c mongoEmployees) Count(ctx context.Context) (int64, error) {
	coll, err := c.g.collection(employeesCollection)
	if err != nil {
		return 0, err
	}
	n, err := coll.CountDocuments(ctx, bson.M{})
	return n, errors.Wrap(err, "counting employees")
}

type mongoAttendance struct{ g *Mongo }

func (c mongoAttendance) Insert(ctx context.Context, a model.Attendance) error {
	coll, err := c.g.collection(attendanceCollection)
	if err != nil {
		return err
	}
	_, err = coll.InsertOne(ctx, attendanceDoc{
		EmployeeID: a.EmployeeID,
		Date:       a.Date,
		Status:     string(a.Status),
		CreatedAt:  a.CreatedAt,
	})
	return mongoWriteError(err, IndexEmployeeDate)
}

func (c mongoAttendance) Find(ctx context.Context, employeeID, date string) (*model.Attendance, error) {
	coll, err := c.g.collection(attendanceCollection)
	if err != nil {
		return nil, err
	}
	var doc attendanceDoc
	if err := coll.FindOne(ctx, bson.M{"employee_id": employeeID, "date": date}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "finding attendance")
	}
	a := doc.model()
	return &a, nil
}

func (c mongoAttendance) list(ctx context.Context, filter bson.M, sort bson.D) ([]model.Attendance, error) {
	coll, err := c.g.collection(attendanceCollection)
	if err != nil {
		return nil, err
	}
	cursor, err := coll.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, errors.Wrap(err, "listing attendance")
	}
	var docs []attendanceDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "reading attendance")
	}
	out := make([]model.Attendance, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (c mongoAttendance) ListByEmployee(ctx context.Context, employeeID string) ([]model.Attendance, error) {
	return c.list(ctx, bson.M{"employee_id": employeeID}, bson.D{{Key: "date", Value: -1}})
}

func (c mongoAttendance) ListByDate(ctx context.Context, date string) ([]model.Attendance, error) {
	return c.list(ctx, bson.M{"date": date}, bson.D{{Key: "employee_id", Value: 1}})
}

func (c mongoAttendance) CountByEmployee(ctx context.Context, employeeID string) (int64, error) {
	coll, err := c.g.collection(attendanceCollection)
	if err != nil {
		return 0, err
	}
	n, err := coll.CountDocuments(ctx, bson.M{"employee_id": employeeID})
	return n, errors.Wrap(err, "counting attendance")
}
