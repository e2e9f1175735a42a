package sqlinline

// QEnsureSchema creates the tables the service owns. It runs without
// arguments so pgx sends it over the simple protocol as one batch.
const QEnsureSchema = `--sql caf6e884-3dc5-46a1-b9ba-9ecaa1e6ce51
create table if not exists integration_tokens (
    id uuid primary key,
    provider text not null unique,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);

create table if not exists character_jobs (
    id uuid primary key,
    style text not null,
    phase text not null,
    failure_reason text,
    failure_message text,
    staging_url text not null default '',
    staging_delete_url text not null default '',
    staging_revoked boolean not null default false,
    cleanup_warning text not null default '',
    description text not null default '',
    generated_image_url text not null default '',
    delivery jsonb,
    created_at timestamptz not null,
    updated_at timestamptz not null
);

create index if not exists character_jobs_unrevoked_idx
    on character_jobs (created_at)
    where staging_delete_url <> '' and not staging_revoked;
`
