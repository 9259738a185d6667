package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: RECRUITMENT
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS partners (
    id UUID PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    email VARCHAR(200) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS jobs (
    id UUID PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    no_of_recruitment INTEGER NOT NULL DEFAULT 0,
    is_published BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS recruitment_stages (
    id UUID PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    sequence INTEGER NOT NULL DEFAULT 10
);

CREATE TABLE IF NOT EXISTS applicants (
    id UUID PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    job_id UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
    partner_id UUID REFERENCES partners(id) ON DELETE SET NULL,
    stage_id UUID REFERENCES recruitment_stages(id) ON DELETE SET NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_applicants_job ON applicants(job_id);
`

const migration001Down = `
DROP TABLE IF EXISTS applicants;
DROP TABLE IF EXISTS recruitment_stages;
DROP TABLE IF EXISTS jobs;
DROP TABLE IF EXISTS partners;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: BATCHES AND PARTICIPANTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS batch_sequences (
    year INTEGER PRIMARY KEY,
    last_value INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS batches (
    id UUID PRIMARY KEY,
    code VARCHAR(32) NOT NULL UNIQUE,
    name VARCHAR(200) NOT NULL,
    job_id UUID REFERENCES jobs(id) ON DELETE SET NULL,
    department_id VARCHAR(64) NOT NULL DEFAULT '',
    mentor_ids TEXT[] NOT NULL DEFAULT '{}',
    capacity INTEGER NOT NULL DEFAULT 0,
    description TEXT NOT NULL DEFAULT '',
    start_date DATE NOT NULL,
    end_date DATE NOT NULL,
    mode VARCHAR(16) NOT NULL DEFAULT 'offline',
    attendance_threshold NUMERIC(5,2) NOT NULL DEFAULT 80,
    score_threshold NUMERIC(5,2) NOT NULL DEFAULT 70,
    is_published BOOLEAN NOT NULL DEFAULT FALSE,
    state VARCHAR(16) NOT NULL DEFAULT 'draft',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT batches_name_unique UNIQUE (name),
    CONSTRAINT batches_job_unique UNIQUE (job_id),
    CONSTRAINT batches_date_check CHECK (end_date >= start_date),
    CONSTRAINT batches_capacity_check CHECK (capacity >= 0),
    CONSTRAINT batches_state_check CHECK (state IN ('draft', 'recruitment', 'ongoing', 'done', 'cancel')),
    CONSTRAINT batches_mode_check CHECK (mode IN ('online', 'offline', 'hybrid')),
    CONSTRAINT batches_threshold_check CHECK (
        attendance_threshold BETWEEN 0 AND 100 AND score_threshold BETWEEN 0 AND 100
    )
);

CREATE INDEX IF NOT EXISTS idx_batches_state ON batches(state);
CREATE INDEX IF NOT EXISTS idx_batches_start ON batches(start_date DESC);

CREATE TABLE IF NOT EXISTS participants (
    id UUID PRIMARY KEY,
    batch_id UUID NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
    partner_id UUID NOT NULL REFERENCES partners(id) ON DELETE RESTRICT,
    applicant_id UUID REFERENCES applicants(id) ON DELETE SET NULL,
    name VARCHAR(420) NOT NULL DEFAULT '',
    attendance_rate NUMERIC(7,4) NOT NULL DEFAULT 0,
    average_score NUMERIC(7,4) NOT NULL DEFAULT 0,
    final_score NUMERIC(7,4) NOT NULL DEFAULT 0,
    mentor_score NUMERIC(7,4) NOT NULL DEFAULT 0,
    state VARCHAR(16) NOT NULL DEFAULT 'draft',
    notes TEXT NOT NULL DEFAULT '',
    portal_token VARCHAR(64) NOT NULL UNIQUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT participants_batch_partner_unique UNIQUE (batch_id, partner_id),
    CONSTRAINT participants_state_check CHECK (state IN ('draft', 'active', 'completed', 'failed', 'left'))
);

CREATE INDEX IF NOT EXISTS idx_participants_partner ON participants(partner_id, created_at DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS participants;
DROP TABLE IF EXISTS batches;
DROP TABLE IF EXISTS batch_sequences;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: SESSIONS, ASSIGNMENTS, ATTENDANCE, CERTIFICATES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS event_links (
    id UUID PRIMARY KEY,
    batch_id UUID NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
    external_event_id VARCHAR(64) NOT NULL DEFAULT '',
    title VARCHAR(200) NOT NULL,
    date_start TIMESTAMP WITH TIME ZONE,
    date_end TIMESTAMP WITH TIME ZONE,
    instructor_id VARCHAR(64) NOT NULL DEFAULT '',
    online_meeting_url TEXT NOT NULL DEFAULT '',
    mandatory BOOLEAN NOT NULL DEFAULT TRUE,
    weight NUMERIC(7,2) NOT NULL DEFAULT 1,
    notes TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT event_links_date_check CHECK (date_end IS NULL OR date_start IS NULL OR date_end >= date_start)
);

CREATE INDEX IF NOT EXISTS idx_event_links_batch ON event_links(batch_id, date_start);

CREATE TABLE IF NOT EXISTS assignments (
    id UUID PRIMARY KEY,
    batch_id UUID NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
    event_link_id UUID REFERENCES event_links(id) ON DELETE SET NULL,
    name VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    type VARCHAR(16) NOT NULL DEFAULT 'task',
    deadline TIMESTAMP WITH TIME ZONE,
    max_score NUMERIC(9,2) NOT NULL DEFAULT 100,
    weight NUMERIC(9,2) NOT NULL DEFAULT 1,
    attachment_required BOOLEAN NOT NULL DEFAULT FALSE,
    state VARCHAR(16) NOT NULL DEFAULT 'draft',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT assignments_max_score_check CHECK (max_score > 0),
    CONSTRAINT assignments_weight_check CHECK (weight >= 0)
);

CREATE INDEX IF NOT EXISTS idx_assignments_batch ON assignments(batch_id);

CREATE TABLE IF NOT EXISTS submissions (
    id UUID PRIMARY KEY,
    assignment_id UUID NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
    participant_id UUID NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
    name VARCHAR(420) NOT NULL DEFAULT '',
    submitted_on TIMESTAMP WITH TIME ZONE,
    attachments TEXT[] NOT NULL DEFAULT '{}',
    submission_url TEXT NOT NULL DEFAULT '',
    score NUMERIC(9,2),
    reviewer_id VARCHAR(64) NOT NULL DEFAULT '',
    feedback TEXT NOT NULL DEFAULT '',
    late BOOLEAN NOT NULL DEFAULT FALSE,
    state VARCHAR(16) NOT NULL DEFAULT 'draft',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_submissions_assignment ON submissions(assignment_id);
CREATE INDEX IF NOT EXISTS idx_submissions_participant ON submissions(participant_id);

CREATE TABLE IF NOT EXISTS attendance (
    id UUID PRIMARY KEY,
    batch_id UUID NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
    event_link_id UUID REFERENCES event_links(id) ON DELETE CASCADE,
    participant_id UUID NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
    check_in TIMESTAMP WITH TIME ZONE,
    check_out TIMESTAMP WITH TIME ZONE,
    presence VARCHAR(16) NOT NULL DEFAULT 'absent',
    method VARCHAR(16) NOT NULL DEFAULT 'manual',
    duration_minutes NUMERIC(9,2) NOT NULL DEFAULT 0,
    notes TEXT NOT NULL DEFAULT '',
    qr_token VARCHAR(64) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT attendance_event_participant_unique UNIQUE (event_link_id, participant_id),
    CONSTRAINT attendance_qr_token_unique UNIQUE (qr_token),
    CONSTRAINT attendance_checkout_check CHECK (check_out IS NULL OR check_in IS NULL OR check_out >= check_in),
    CONSTRAINT attendance_presence_check CHECK (presence IN ('present', 'late', 'absent')),
    CONSTRAINT attendance_method_check CHECK (method IN ('qr', 'online', 'manual'))
);

CREATE INDEX IF NOT EXISTS idx_attendance_participant ON attendance(participant_id);
CREATE INDEX IF NOT EXISTS idx_attendance_open ON attendance(event_link_id) WHERE check_out IS NULL;

CREATE TABLE IF NOT EXISTS certificates (
    id UUID PRIMARY KEY,
    name VARCHAR(200) NOT NULL DEFAULT 'Certificate',
    number VARCHAR(64) NOT NULL DEFAULT '',
    participant_id UUID NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
    batch_id UUID NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
    date_issued TIMESTAMP WITH TIME ZONE NOT NULL,
    notes TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT certificates_participant_unique UNIQUE (participant_id)
);

CREATE INDEX IF NOT EXISTS idx_certificates_batch ON certificates(batch_id);
`

const migration003Down = `
DROP TABLE IF EXISTS certificates;
DROP TABLE IF EXISTS attendance;
DROP TABLE IF EXISTS submissions;
DROP TABLE IF EXISTS assignments;
DROP TABLE IF EXISTS event_links;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: PORTAL USERS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS portal_users (
    id UUID PRIMARY KEY,
    login VARCHAR(200) NOT NULL UNIQUE,
    password_hash VARCHAR(100) NOT NULL,
    partner_id UUID REFERENCES partners(id) ON DELETE SET NULL,
    internal BOOLEAN NOT NULL DEFAULT FALSE,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration004Down = `
DROP TABLE IF EXISTS portal_users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 005: CERTIFICATE SEQUENCES
// ══════════════════════════════════════════════════════════════════════════════

const migration005Up = `
CREATE TABLE IF NOT EXISTS certificate_sequences (
    batch_id UUID PRIMARY KEY REFERENCES batches(id) ON DELETE CASCADE,
    last_value INTEGER NOT NULL
);

ALTER TABLE certificates
    ADD CONSTRAINT certificates_batch_number_unique UNIQUE (batch_id, number);
`

const migration005Down = `
ALTER TABLE certificates DROP CONSTRAINT IF EXISTS certificates_batch_number_unique;
DROP TABLE IF EXISTS certificate_sequences;
`
